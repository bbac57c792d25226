package credentials

import (
	"context"
	"crypto/subtle"
	"errors"
)

var (
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrUserExists is returned by Register for a duplicate username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned for an empty username or password.
	ErrInvalidInput = errors.New("username and password are required")
)

// Provider verifies a username/password pair.
//
// A false result with a nil error means the pair did not match, whether or not
// the username exists. A non-nil error means the backend could not answer.
type Provider interface {
	VerifyCredentials(ctx context.Context, username, password string) (bool, error)
}

// Directory enumerates registered users.
type Directory interface {
	CountUsers(ctx context.Context) (int, error)
	ListUsernames(ctx context.Context) ([]string, error)
}

// StaticProvider matches exactly one fixed username/password pair.
type StaticProvider struct {
	username []byte
	password []byte
}

// NewStaticProvider returns a provider accepting only username/password.
func NewStaticProvider(username, password string) *StaticProvider {
	return &StaticProvider{
		username: []byte(username),
		password: []byte(password),
	}
}

// VerifyCredentials compares both fields in constant time.
func (p *StaticProvider) VerifyCredentials(_ context.Context, username, password string) (bool, error) {
	userOK := subtle.ConstantTimeCompare(p.username, []byte(username))
	passOK := subtle.ConstantTimeCompare(p.password, []byte(password))
	return userOK&passOK == 1 && len(p.username) > 0, nil
}

// Username returns the configured username.
func (p *StaticProvider) Username() string {
	return string(p.username)
}

var (
	_ Provider  = (*StaticProvider)(nil)
	_ Provider  = (*SQLStore)(nil)
	_ Directory = (*SQLStore)(nil)
)
