package gatekeeper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/gatekeeper/jwt"
)

// Config is the Engine configuration. Build clones it, so later changes to the
// caller's copy have no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Admin    AdminConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token codec.
type JWTConfig struct {
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	Secret        []byte
	TTL           time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the registry. RedisPrefix only applies when the
// registry is built from a Redis client.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
ADMIN CONFIG
====================================
*/

// AdminConfig holds the single admin credential pair.
type AdminConfig struct {
	Username string
	Password string
}

/*
====================================
AUDIT & METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig configures the optional login throttle. The throttle needs a
// Redis client.
type SecurityConfig struct {
	LoginThrottle         bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
}

// DefaultConfig returns the defaults. The JWT secret is left empty and must
// be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodHS256),
			TTL:           jwt.DefaultTTL,
		},
		Session: SessionConfig{
			RedisPrefix: "gk",
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			LoginThrottle:         false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
			EnableIPThrottle:      false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks cfg for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)) {
	case "", jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", jwt.MinSecretLength)
	}
	if c.JWT.TTL < 0 {
		return errors.New("JWT TTL must not be negative")
	}

	if c.Admin.Username == "" || c.Admin.Password == "" {
		return errors.New("admin username and password are required")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}

	if c.Security.LoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("MaxLoginAttempts must be positive when login throttle is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("LoginCooldownDuration must be positive when login throttle is enabled")
		}
	}

	return nil
}
