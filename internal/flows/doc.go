// Package flows contains the orchestration behind each Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunLogoutByToken) accepts a typed
// dependency struct and returns a classified result. The Engine maps the
// classification onto its public errors, metrics and audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the session store, token codec and login
// throttle. They do NOT own any of these resources; ownership stays with
// the Engine. This package must not import the root package.
package flows
