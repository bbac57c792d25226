package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle tuning parameters.
type Config struct {
	Prefix           string
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// Limiter counts failed logins in Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// incrWindowLua increments a counter and arms its window on the first hit.
var incrWindowLua = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// New creates a Limiter backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gk"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when identifier, or ip when IP
// throttling is enabled, has used up its attempt budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if err := l.checkCounter(ctx, l.identifierKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records a failed attempt. It returns ErrRateLimited when the
// attempt just recorded exhausted the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	count, err := l.incrementWithTTL(ctx, l.identifierKey(identifier))
	if err != nil {
		return err
	}
	limited := count >= int64(l.config.MaxAttempts)

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		limited = limited || count >= int64(l.config.MaxAttempts)
	}

	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the identifier's counter. The IP counter is left alone.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, l.identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failure count recorded for identifier in the current window.
func (l *Limiter) Attempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.identifierKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) identifierKey(identifier string) string {
	return l.config.Prefix + ":throttle:login:id:" + identifier
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.Prefix + ":throttle:login:ip:" + ip
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := incrWindowLua.Run(ctx, l.redis, []string{key}, l.config.Cooldown.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
