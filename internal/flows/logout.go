package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureMissingToken
	LogoutFailureExpiredToken
	LogoutFailureInvalidToken
	LogoutFailureStore
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Decode   func(string) (*jwt.Claims, error)
	Sessions session.Store
}

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	Key     session.Key
	// SessionID is the jti of the presented token.
	SessionID string
}

// RunLogoutByToken removes the registry entry named by tokenStr whether or
// not it is present. A token that cannot be decoded revokes nothing.
func RunLogoutByToken(ctx context.Context, tokenStr string, deps LogoutDeps) LogoutResult {
	if tokenStr == "" {
		return LogoutResult{Failure: LogoutFailureMissingToken}
	}

	claims, err := deps.Decode(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return LogoutResult{Failure: LogoutFailureExpiredToken, Err: err}
		}
		return LogoutResult{Failure: LogoutFailureInvalidToken, Err: err}
	}

	key := claims.Key()
	if err := deps.Sessions.Remove(ctx, key); err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, Key: key, SessionID: claims.SessionID()}
	}
	return LogoutResult{Key: key, SessionID: claims.SessionID()}
}
