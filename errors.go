package gatekeeper

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/gatekeeper/jwt"
)

var (
	// ErrMissingToken is returned when no token was presented.
	ErrMissingToken = errors.New("token missing")
	// ErrInvalidToken covers truncated, tampered, wrongly signed or otherwise
	// undecodable tokens.
	ErrInvalidToken = jwt.ErrInvalidToken
	// ErrExpiredToken is returned for a well-formed token past its deadline.
	ErrExpiredToken = jwt.ErrExpiredToken
	// ErrWrongTokenType is returned when a token's role does not match the
	// role the caller requires.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrSessionExpired is returned for a valid token whose session was
	// logged out or superseded.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidCredentials is the uniform user login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is the admin login failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCollaboratorUnavailable wraps failures of the credential store,
	// session store or throttle backend.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrBadRequest marks a malformed request body.
	ErrBadRequest = errors.New("bad request")
	// ErrLoginRateLimited is returned while the login throttle is engaged.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

type errorClass struct {
	err     error
	status  int
	message string
}

// Checked in order; the first match wins.
var errorClasses = []errorClass{
	{ErrMissingToken, http.StatusBadRequest, "Token is missing!"},
	{ErrBadRequest, http.StatusBadRequest, "Invalid request body"},
	{ErrExpiredToken, http.StatusUnauthorized, "Token has expired!"},
	{ErrInvalidToken, http.StatusUnauthorized, "Token is invalid!"},
	{ErrWrongTokenType, http.StatusUnauthorized, "Invalid token type!"},
	{ErrSessionExpired, http.StatusUnauthorized, "Session expired!"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{ErrLoginRateLimited, http.StatusTooManyRequests, "Too many login attempts"},
	{ErrCollaboratorUnavailable, http.StatusInternalServerError, "Internal server error"},
}

// StatusOf maps err onto an HTTP status class. Unknown errors are 500.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// MessageOf returns the caller-visible message for err. Collaborator and
// unknown errors get a generic message so internal detail never leaks.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.message
		}
	}
	return "Internal server error"
}
