package gatekeeper

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigNeedsSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without secret to be rejected")
	}
	cfg.JWT.Secret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with secret to validate: %v", err)
	}
	if cfg.JWT.TTL != 24*time.Hour || cfg.Admin.Username != "admin" || cfg.Admin.Password != "admin123" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"short secret":     func(c *Config) { c.JWT.Secret = []byte("short") },
		"bad method":       func(c *Config) { c.JWT.SigningMethod = "rs256" },
		"negative ttl":     func(c *Config) { c.JWT.TTL = -time.Second },
		"no admin user":    func(c *Config) { c.Admin.Username = "" },
		"no admin pass":    func(c *Config) { c.Admin.Password = "" },
		"audit no buffer":  func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 },
		"throttle no max":  func(c *Config) { c.Security.LoginThrottle = true; c.Security.MaxLoginAttempts = 0 },
		"throttle no wait": func(c *Config) { c.Security.LoginThrottle = true; c.Security.LoginCooldownDuration = 0 },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	var nilCfg *Config
	if err := nilCfg.Validate(); err == nil {
		t.Fatal("expected nil config to be rejected")
	}
}

func TestConfigAcceptsUpperCaseMethod(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.SigningMethod = "HS512"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected HS512 to validate: %v", err)
	}
}

func TestBuilderRequiresUserProvider(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "user provider") {
		t.Fatalf("expected user provider error, got %v", err)
	}
}

func TestBuilderThrottleRequiresRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Security.LoginThrottle = true
	_, err := New().WithConfig(cfg).WithUserProvider(newMockUserProvider()).Build()
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis requirement error, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserProvider(newMockUserProvider())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderClonesConfig(t *testing.T) {
	cfg := testConfig()
	engine, err := New().WithConfig(cfg).WithUserProvider(newMockUserProvider()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	cfg.JWT.Secret[0] ^= 0xff
	defer func() { cfg.JWT.Secret[0] ^= 0xff }()
	if got := engine.Config().JWT.Secret[0]; got != '0' {
		t.Fatalf("engine config must not alias caller secret, got %q", got)
	}
}

func TestBuilderPicksRedisStore(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine, err := New().
		WithConfig(testConfig()).
		WithUserProvider(newMockUserProvider("alice", "secret")).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !mr.Exists("gk:user:alice") {
		t.Fatalf("expected session under gk:user:alice, keys=%v", mr.Keys())
	}
}
