// Package config loads the gatekeeper service configuration from a YAML file
// overlaid by GATEKEEPER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/credentials"
	"gopkg.in/yaml.v3"
)

// DevSecret is the signing secret used when none is configured. Serve warns
// when it is in effect.
const DevSecret = "your-secret-key-here-change-in-production"

// RedisMemory selects an embedded in-process Redis.
const RedisMemory = "memory"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DatabaseConfig configures the SQL credential store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // sqlite, postgres, mysql
	DSN             string        `yaml:"dsn"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectInterval time.Duration `yaml:"connect_interval"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig selects the session registry backend. An empty Addr keeps
// sessions in process memory; "memory" starts an embedded Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type AuthConfig struct {
	Secret           string        `yaml:"secret"`
	SigningMethod    string        `yaml:"signing_method"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	AdminUsername    string        `yaml:"admin_username"`
	AdminPassword    string        `yaml:"admin_password"`
	LoginThrottle    bool          `yaml:"login_throttle"`
	MaxLoginAttempts int           `yaml:"max_login_attempts"`
	LoginCooldown    time.Duration `yaml:"login_cooldown"`
	IPThrottle       bool          `yaml:"ip_throttle"`
}

type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BufferSize int    `yaml:"buffer_size"`
	Output     string `yaml:"output"` // log, stdout
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Latency bool `yaml:"latency"`
}

// Default returns the service defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins: []string{
				"http://localhost:8080",
				"http://127.0.0.1:8080",
				"http://frontend:80",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Driver:          string(credentials.DialectSQLite),
			DSN:             "gatekeeper.db",
			ConnectAttempts: 30,
			ConnectInterval: 2 * time.Second,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Prefix: "gk",
		},
		Auth: AuthConfig{
			Secret:           DevSecret,
			SigningMethod:    "hs256",
			TokenTTL:         24 * time.Hour,
			AdminUsername:    "admin",
			AdminPassword:    "admin123",
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			Output:     "log",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Latency: true,
		},
	}
}

// Load reads defaults, then path (if non-empty), then the environment, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays GATEKEEPER_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("GATEKEEPER_ADDR", &c.Server.Addr)
	if v, ok := lookup("GATEKEEPER_CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	str("GATEKEEPER_LOG_LEVEL", &c.Log.Level)
	str("GATEKEEPER_LOG_FORMAT", &c.Log.Format)
	str("GATEKEEPER_DB_DRIVER", &c.Database.Driver)
	str("GATEKEEPER_DB_DSN", &c.Database.DSN)
	str("GATEKEEPER_REDIS_ADDR", &c.Redis.Addr)
	str("GATEKEEPER_REDIS_PASSWORD", &c.Redis.Password)
	str("GATEKEEPER_REDIS_PREFIX", &c.Redis.Prefix)
	str("GATEKEEPER_JWT_SECRET", &c.Auth.Secret)
	str("GATEKEEPER_JWT_SIGNING_METHOD", &c.Auth.SigningMethod)
	str("GATEKEEPER_ADMIN_USERNAME", &c.Auth.AdminUsername)
	str("GATEKEEPER_ADMIN_PASSWORD", &c.Auth.AdminPassword)
	str("GATEKEEPER_AUDIT_OUTPUT", &c.Audit.Output)

	for _, step := range []error{
		integer("GATEKEEPER_DB_CONNECT_ATTEMPTS", &c.Database.ConnectAttempts),
		duration("GATEKEEPER_DB_CONNECT_INTERVAL", &c.Database.ConnectInterval),
		boolean("GATEKEEPER_DB_AUTO_MIGRATE", &c.Database.AutoMigrate),
		integer("GATEKEEPER_REDIS_DB", &c.Redis.DB),
		duration("GATEKEEPER_TOKEN_TTL", &c.Auth.TokenTTL),
		boolean("GATEKEEPER_LOGIN_THROTTLE", &c.Auth.LoginThrottle),
		integer("GATEKEEPER_MAX_LOGIN_ATTEMPTS", &c.Auth.MaxLoginAttempts),
		duration("GATEKEEPER_LOGIN_COOLDOWN", &c.Auth.LoginCooldown),
		boolean("GATEKEEPER_IP_THROTTLE", &c.Auth.IPThrottle),
		boolean("GATEKEEPER_TRUST_PROXY", &c.Server.TrustProxy),
		boolean("GATEKEEPER_AUDIT_ENABLED", &c.Audit.Enabled),
		boolean("GATEKEEPER_METRICS_ENABLED", &c.Metrics.Enabled),
	} {
		if step != nil {
			return step
		}
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := credentials.ParseDialect(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.ConnectAttempts <= 0 {
		return fmt.Errorf("database.connect_attempts must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	switch strings.ToLower(c.Audit.Output) {
	case "log", "stdout":
	default:
		return fmt.Errorf("audit.output must be log or stdout")
	}
	if c.Auth.LoginThrottle && c.Redis.Addr == "" {
		return fmt.Errorf("auth.login_throttle requires redis.addr")
	}

	engineCfg := c.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// EngineConfig maps the service configuration onto gatekeeper.Config.
func (c *Config) EngineConfig() gatekeeper.Config {
	cfg := gatekeeper.DefaultConfig()
	cfg.JWT.Secret = []byte(c.Auth.Secret)
	cfg.JWT.SigningMethod = c.Auth.SigningMethod
	cfg.JWT.TTL = c.Auth.TokenTTL
	cfg.Session.RedisPrefix = c.Redis.Prefix
	cfg.Admin.Username = c.Auth.AdminUsername
	cfg.Admin.Password = c.Auth.AdminPassword
	cfg.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latency
	cfg.Security.LoginThrottle = c.Auth.LoginThrottle
	cfg.Security.MaxLoginAttempts = c.Auth.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Auth.LoginCooldown
	cfg.Security.EnableIPThrottle = c.Auth.IPThrottle
	return cfg
}

// OpenConfig maps the database section onto credentials.OpenConfig.
func (c *Config) OpenConfig() (credentials.OpenConfig, error) {
	dialect, err := credentials.ParseDialect(c.Database.Driver)
	if err != nil {
		return credentials.OpenConfig{}, err
	}
	return credentials.OpenConfig{
		Dialect:         dialect,
		DSN:             c.Database.DSN,
		ConnectAttempts: c.Database.ConnectAttempts,
		ConnectInterval: c.Database.ConnectInterval,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}, nil
}

// UsesDevSecret reports whether the built-in development secret is in effect.
func (c *Config) UsesDevSecret() bool {
	return c.Auth.Secret == DevSecret
}
