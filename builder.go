package gatekeeper

import (
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/gatekeeper/credentials"
	internalaudit "github.com/MrEthical07/gatekeeper/internal/audit"
	"github.com/MrEthical07/gatekeeper/internal/rate"
	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder assembles an Engine. A Builder can be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider  credentials.Provider
	userDirectory credentials.Directory
	adminProvider credentials.Provider
	sessionStore  session.Store

	logger    logrus.FieldLogger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies a Redis client. It backs the session registry unless
// WithSessionStore is also called, and it is required by the login throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the credential provider for Login. If p also
// implements credentials.Directory it serves ListUsers and CountUsers.
func (b *Builder) WithUserProvider(p credentials.Provider) *Builder {
	b.userProvider = p
	return b
}

// WithUserDirectory overrides the directory used by ListUsers and CountUsers.
func (b *Builder) WithUserDirectory(d credentials.Directory) *Builder {
	b.userDirectory = d
	return b
}

// WithAdminProvider overrides the admin provider. By default the Engine uses
// a credentials.StaticProvider built from Config.Admin.
func (b *Builder) WithAdminProvider(p credentials.Provider) *Builder {
	b.adminProvider = p
	return b
}

// WithSessionStore injects the session registry.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessionStore = store
	return b
}

func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if cfg.Security.LoginThrottle && b.redis == nil {
		return nil, errors.New("login throttle requires redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	// -------- SESSION STORE --------
	store := b.sessionStore
	switch {
	case store != nil:
	case b.redis != nil:
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	default:
		store = session.NewMemoryStore()
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		DefaultTTL:    cfg.JWT.TTL,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		jwtManager:   jm,
		sessionStore: store,
		userProvider: b.userProvider,
		logger:       logger.WithField("component", "gatekeeper"),
		now:          now,
		newSessionID: uuid.NewString,
	}

	engine.userDirectory = b.userDirectory
	if engine.userDirectory == nil {
		if d, ok := b.userProvider.(credentials.Directory); ok {
			engine.userDirectory = d
		}
	}

	engine.adminProvider = b.adminProvider
	if engine.adminProvider == nil {
		engine.adminProvider = credentials.NewStaticProvider(cfg.Admin.Username, cfg.Admin.Password)
	}

	if cfg.Security.LoginThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Session.RedisPrefix,
			MaxAttempts:      cfg.Security.MaxLoginAttempts,
			Cooldown:         cfg.Security.LoginCooldownDuration,
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
		})
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
		Logger:     logger.WithField("component", "audit"),
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.initFlowDeps()

	b.built = true

	return engine, nil
}
