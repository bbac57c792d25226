// Package jwt issues and decodes the signed, time-limited tokens that assert a
// subject and role, bound to one session ID through the jti claim.
//
// The codec is purely cryptographic and temporal: it never consults the
// session registry. Liveness is decided by the Engine.
package jwt
