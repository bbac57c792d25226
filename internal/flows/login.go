package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gatekeeper/session"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRejected
	LoginFailureRateLimited
	LoginFailureThrottleBackend
	LoginFailureProvider
	LoginFailureIssue
	LoginFailureStore
)

// LoginDeps captures the dependencies of one login entry point.
type LoginDeps struct {
	Role session.Role
	TTL  time.Duration

	VerifyCredentials func(ctx context.Context, username, password string) (bool, error)

	// Throttle hooks. All nil when throttling is disabled.
	CheckThrottle  func(ctx context.Context, username string) error
	RecordFailure  func(ctx context.Context, username string) error
	ResetThrottle  func(ctx context.Context, username string) error
	RateLimitedErr error

	NewSessionID func() string
	Now          func() time.Time
	Issue        func(subject string, role session.Role, sessionID string, ttl time.Duration) (string, error)
	Sessions     session.Store
}

// LoginResult carries either the issued token and session or a classified failure.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error

	Token   string
	Session *session.Session
	// Superseded is the session this login replaced, if any.
	Superseded *session.Session
	// ThrottleResetErr is set when clearing the failure counter after a
	// successful login failed. The login itself still succeeds.
	ThrottleResetErr error
}

// RunLogin verifies credentials, issues a token bound to a fresh session and
// registers that session under (username, deps.Role).
//
// Empty credentials are rejected without consulting the provider but still
// count as a failed attempt. A failure counter that cannot be written fails
// the login as LoginFailureThrottleBackend.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, username); err != nil {
			if deps.RateLimitedErr != nil && errors.Is(err, deps.RateLimitedErr) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureThrottleBackend, Err: err}
		}
	}

	ok := false
	if username != "" && password != "" {
		var err error
		ok, err = deps.VerifyCredentials(ctx, username, password)
		if err != nil {
			return LoginResult{Failure: LoginFailureProvider, Err: err}
		}
	}
	if !ok {
		if deps.RecordFailure != nil {
			// RateLimitedErr here only means this attempt used up the budget.
			err := deps.RecordFailure(ctx, username)
			if err != nil && (deps.RateLimitedErr == nil || !errors.Is(err, deps.RateLimitedErr)) {
				return LoginResult{Failure: LoginFailureThrottleBackend, Err: err}
			}
		}
		return LoginResult{Failure: LoginFailureRejected}
	}

	var resetErr error
	if deps.ResetThrottle != nil {
		resetErr = deps.ResetThrottle(ctx, username)
	}

	now := deps.Now()
	sess := &session.Session{
		ID:        deps.NewSessionID(),
		Subject:   username,
		Role:      deps.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(deps.TTL).Unix(),
	}

	token, err := deps.Issue(sess.Subject, sess.Role, sess.ID, deps.TTL)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err}
	}

	prev, err := deps.Sessions.Put(ctx, sess)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	return LoginResult{Token: token, Session: sess, Superseded: prev, ThrottleResetErr: resetErr}
}
