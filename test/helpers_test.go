package test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// longUsername is longer than any single-byte length prefix can describe.
var longUsername = strings.Repeat("a", 300)

type staticUsers map[string]string

func (u staticUsers) VerifyCredentials(_ context.Context, username, password string) (bool, error) {
	stored, ok := u[username]
	return ok && stored == password, nil
}

type storeFactory struct {
	name string
	new  func(t *testing.T) session.Store
}

// storeFactories returns every registry backend the engine ships with.
func storeFactories() []storeFactory {
	return []storeFactory{
		{"memory", func(*testing.T) session.Store { return session.NewMemoryStore() }},
		{"redis", func(t *testing.T) session.Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return session.NewRedisStore(rdb, "it")
		}},
	}
}

func newEngine(t *testing.T, store session.Store) *gatekeeper.Engine {
	t.Helper()

	cfg := gatekeeper.DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.Audit.Enabled = false

	logger := logrus.New()
	logger.Out = io.Discard

	engine, err := gatekeeper.New().
		WithConfig(cfg).
		WithUserProvider(staticUsers{"alice": "secret", "bob": "hunter2", longUsername: "secret"}).
		WithSessionStore(store).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
