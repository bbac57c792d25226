// Package gatekeeper issues signed session tokens for two principal classes
// (regular users and a single admin), tracks which tokens are active in a
// session registry, and validates tokens on protected requests.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// gatekeeper is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([Identity], [LoginResult], [VerifyResult]). Flow
// orchestration, login throttling, audit dispatch and metric storage live
// under internal/.
//
// The token codec lives in jwt/ and never sees the registry. The registry
// lives in session/ behind the [session.Store] interface. Credentials come
// from a [credentials.Provider].
//
// # Session semantics
//
// A registry entry is keyed by (subject, role). A second login for the same
// key replaces the first session, so the first token stops validating with
// [ErrSessionExpired] even though it is still correctly signed and
// unexpired. Logout removes the entry and is idempotent. Entries are never
// swept on expiry: the codec rejects expired tokens before the registry is
// consulted.
package gatekeeper
