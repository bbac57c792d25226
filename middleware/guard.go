package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/gatekeeper"
)

// Validator is the subset of *gatekeeper.Engine the guards need.
type Validator interface {
	Validate(ctx context.Context, token string, required gatekeeper.Role) (*gatekeeper.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by a guard.
func IdentityFromContext(ctx context.Context) (*gatekeeper.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*gatekeeper.Identity)
	return id, ok
}

// Require rejects requests whose token is not a live session of role.
func Require(engine Validator, role gatekeeper.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, gatekeeper.ErrEngineNotReady)
				return
			}

			id, err := engine.Validate(r.Context(), BearerToken(r), role)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireUser(engine Validator) func(http.Handler) http.Handler {
	return Require(engine, gatekeeper.RoleUser)
}

func RequireAdmin(engine Validator) func(http.Handler) http.Handler {
	return Require(engine, gatekeeper.RoleAdmin)
}

// BearerToken returns the token carried by the Authorization header. The
// "Bearer " prefix is optional. An absent header yields "".
func BearerToken(r *http.Request) string {
	const bearer = "Bearer "

	value := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(value) >= len(bearer) && strings.EqualFold(value[:len(bearer)], bearer) {
		value = strings.TrimSpace(value[len(bearer):])
	}
	return value
}

// ClientIP attaches the remote address (without port) to the request
// context via gatekeeper.WithClientIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(gatekeeper.WithClientIP(r.Context(), host)))
	})
}

// WriteError writes {"message": ...} with the status and caller-visible
// message classified for err.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gatekeeper.StatusOf(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"message": gatekeeper.MessageOf(err)})
}
