package session

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps backend failures of a networked Store.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrSessionNotFound is returned by Get when no entry exists for the key.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSession is returned by Put for a session with an empty
	// subject or ID, or an unknown role.
	ErrInvalidSession = errors.New("invalid session")
)

// Store is the session registry.
//
// Implementations must be safe for concurrent use. Put and Remove on the same
// Key are serialized: a racing login and logout leave the entry either fully
// present or fully absent.
type Store interface {
	// Put inserts or overwrites the entry for s.Key() and returns the entry it
	// replaced, or nil. The swap is atomic: concurrent Puts on one key each see
	// a distinct predecessor.
	Put(ctx context.Context, s *Session) (*Session, error)
	// Contains reports whether the live session for key has the given ID.
	Contains(ctx context.Context, key Key, sessionID string) (bool, error)
	// Remove deletes the entry for key. Removing an absent key is not an error.
	Remove(ctx context.Context, key Key) error
	// Get returns a copy of the entry for key, or ErrSessionNotFound.
	Get(ctx context.Context, key Key) (*Session, error)
	// Count returns the number of live entries for role.
	Count(ctx context.Context, role Role) (int, error)
}

func validateSession(s *Session) error {
	if s == nil {
		return fmt.Errorf("%w: nil session", ErrInvalidSession)
	}
	if s.ID == "" || s.Subject == "" {
		return fmt.Errorf("%w: id and subject are required", ErrInvalidSession)
	}
	if !s.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidSession, s.Role)
	}
	return nil
}
