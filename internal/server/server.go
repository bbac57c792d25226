// Package server exposes the gatekeeper Engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/credentials"
	"github.com/MrEthical07/gatekeeper/internal/config"
	gkmiddleware "github.com/MrEthical07/gatekeeper/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// UserStore is the account store behind /register and /db-info.
type UserStore interface {
	Register(ctx context.Context, username, password string) error
	Info(ctx context.Context) (*credentials.DBInfo, error)
	Ping(ctx context.Context) error
}

// Server is the gatekeeper HTTP API.
type Server struct {
	router    chi.Router
	logger    logrus.FieldLogger
	config    config.ServerConfig
	startTime time.Time
	engine    *gatekeeper.Engine
	users     UserStore
	health    *HealthChecker
	metrics   http.Handler // optional; /metrics is not routed when nil
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRedis adds the session Redis to the /health dependency report.
func WithRedis(client redis.UniversalClient) Option {
	return func(s *Server) {
		s.health.redis = client
	}
}

// New creates a Server with all routes registered.
func New(cfg config.ServerConfig, engine *gatekeeper.Engine, users UserStore, logger logrus.FieldLogger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.WithField("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		engine:    engine,
		users:     users,
		health:    NewHealthChecker(users, nil),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	if s.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(loggingMiddleware(s.logger))
	r.Use(gkmiddleware.ClientIP)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/admin-login", s.handleAdminLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/verify-session", s.handleVerifySession)

	r.With(gkmiddleware.RequireUser(s.engine)).Get("/user-dashboard", s.handleUserDashboard)
	r.Group(func(r chi.Router) {
		r.Use(gkmiddleware.RequireAdmin(s.engine))
		r.Get("/users", s.handleListUsers)
		r.Get("/admin-dashboard", s.handleAdminDashboard)
	})

	r.Get("/health", s.health.Readiness)
	r.Get("/health/live", s.health.Liveness)
	r.Get("/db-info", s.handleDBInfo)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
}
