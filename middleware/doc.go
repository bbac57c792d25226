// Package middleware exposes HTTP middleware that gates handlers behind
// gatekeeper.Engine token validation.
//
// # Guards
//
//   - [Require] validates the request token for a given role.
//   - [RequireUser] and [RequireAdmin] are shorthands for the two roles.
//   - [ClientIP] records the caller address for the login throttle and audit.
//
// A guard reads the Authorization header (with or without the "Bearer "
// prefix), calls Engine.Validate, and on success stores the resulting
// [gatekeeper.Identity] in the request context. On failure it writes a JSON
// body {"message": ...} with the status from [gatekeeper.StatusOf].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT parse
// tokens or touch the session registry itself.
package middleware
