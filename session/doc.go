// Package session provides the session registry: the record of which issued
// tokens are still live, independent of their signatures.
//
// # Keys and liveness
//
// A registry entry is keyed by [Key] (subject, role). A second login for the
// same key overwrites the entry, so the earlier token stops being live while
// it remains cryptographically valid. [Store.Contains] therefore compares the
// stored session ID with the one the presented token carries.
//
// Entries are never swept on expiry. Expired tokens fail at the codec before
// the registry is consulted.
//
// # Implementations
//
//   - [MemoryStore]: reference implementation, two role partitions under one
//     mutex.
//   - [RedisStore]: networked variant on go-redis, one key per entry holding
//     the compact binary encoding produced by [Encode].
//
// # Architecture boundaries
//
// This package does NOT decode tokens or enforce role checks. Those belong to
// the jwt package and the Engine.
package session
