package server

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports database and Redis reachability.
type HealthChecker struct {
	db    Pinger
	redis redis.UniversalClient
}

// NewHealthChecker creates a checker. Either dependency may be nil.
func NewHealthChecker(db Pinger, client redis.UniversalClient) *HealthChecker {
	return &HealthChecker{db: db, redis: client}
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the health of one dependency.
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Liveness always answers 200 while the process serves requests.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    StatusHealthy,
		"timestamp": time.Now().UTC(),
	})
}

// Readiness checks every dependency and answers 503 when any is down.
// Redis holds the session registry here, so it is not optional.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Check pings each configured dependency.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if h.db != nil {
		dep := checkDependency(ctx, h.db.Ping, "Database connection successful", "Database connection failed")
		status.Dependencies["database"] = dep
		if dep.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
	}
	if h.redis != nil {
		dep := checkDependency(ctx, func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		}, "Redis connection successful", "Redis connection failed")
		status.Dependencies["redis"] = dep
		if dep.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
	}

	return status
}

func checkDependency(ctx context.Context, ping func(context.Context) error, okMsg, failMsg string) DependencyStatus {
	start := time.Now()
	err := ping(ctx)
	dep := DependencyStatus{
		Status:    StatusHealthy,
		Message:   okMsg,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		dep.Status = StatusUnhealthy
		dep.Message = failMsg
	}
	return dep
}
