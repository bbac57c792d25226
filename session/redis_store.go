package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "gk"

const scanBatch = 256

// RedisStore is a Store backed by Redis.
//
// Each entry lives under prefix:role:subject and is written with a single
// SET ... GET without expiry, so Put and Remove on one key are atomic, last
// writer wins, and each Put sees exactly the value it overwrote.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore using client. An empty prefix selects "gk".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (r *RedisStore) key(k Key) string {
	return r.prefix + ":" + string(k.Role) + ":" + k.Subject
}

// Put implements Store. A replaced value that no longer decodes is reported
// as no predecessor; the write itself has already succeeded.
func (r *RedisStore) Put(ctx context.Context, s *Session) (*Session, error) {
	if err := validateSession(s); err != nil {
		return nil, err
	}
	blob, err := Encode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	old, err := r.redis.SetArgs(ctx, r.key(s.Key()), blob, redis.SetArgs{Get: true}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	prev, err := Decode([]byte(old))
	if err != nil {
		return nil, nil
	}
	return prev, nil
}

// Contains implements Store.
func (r *RedisStore) Contains(ctx context.Context, key Key, sessionID string) (bool, error) {
	s, err := r.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.ID == sessionID, nil
}

// Remove implements Store.
func (r *RedisStore) Remove(ctx context.Context, key Key) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get implements Store. A blob that fails to decode is reported as
// ErrStoreUnavailable.
func (r *RedisStore) Get(ctx context.Context, key Key) (*Session, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt session %s: %v", ErrStoreUnavailable, key, err)
	}
	return s, nil
}

// Count implements Store. It walks the role's keyspace with SCAN, so the
// result is approximate while writes are in flight.
func (r *RedisStore) Count(ctx context.Context, role Role) (int, error) {
	match := r.prefix + ":" + string(role) + ":*"

	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// Ping checks connectivity and reports the round trip.
func (r *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
