package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMissingToken
	ValidateFailureExpiredToken
	ValidateFailureInvalidToken
	ValidateFailureWrongTokenType
	ValidateFailureSessionExpired
	ValidateFailureStore
)

// ValidateDeps captures validation dependencies.
type ValidateDeps struct {
	Decode   func(string) (*jwt.Claims, error)
	Sessions session.Store
}

// ValidateResult returns either the decoded claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// RunValidate decodes tokenStr, checks its role against required and confirms
// the session it names is still live. An empty required role skips the role
// check.
func RunValidate(ctx context.Context, tokenStr string, required session.Role, deps ValidateDeps) ValidateResult {
	if tokenStr == "" {
		return ValidateResult{Failure: ValidateFailureMissingToken}
	}

	claims, err := deps.Decode(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return ValidateResult{Failure: ValidateFailureExpiredToken, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureInvalidToken, Err: err}
	}

	if required != "" && claims.Role() != required {
		return ValidateResult{Failure: ValidateFailureWrongTokenType, Claims: claims}
	}

	live, err := deps.Sessions.Contains(ctx, claims.Key(), claims.SessionID())
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
	}
	if !live {
		return ValidateResult{Failure: ValidateFailureSessionExpired, Claims: claims}
	}

	return ValidateResult{Claims: claims}
}
