// Package rate implements the optional login throttle.
//
// Failed login attempts are counted in Redis per (role, username) and,
// when enabled, per client IP, using fixed windows that start at the first
// failure. A successful login clears the identifier's counter.
//
// The throttle is consulted before credentials are verified, so a throttled
// caller learns nothing about whether the account exists.
package rate
