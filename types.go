package gatekeeper

import (
	"io"

	internalaudit "github.com/MrEthical07/gatekeeper/internal/audit"
	internalmetrics "github.com/MrEthical07/gatekeeper/internal/metrics"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/sirupsen/logrus"
)

// Role is the class of principal a token is scoped to.
type Role = session.Role

const (
	RoleUser  = session.RoleUser
	RoleAdmin = session.RoleAdmin
)

// Identity is attached to a request once its token decoded and its session is live.
type Identity struct {
	Subject   string
	Role      Role
	SessionID string
}

// LoginResult is returned by Login and AdminLogin.
type LoginResult struct {
	Token     string
	Username  string
	Role      Role
	SessionID string
	ExpiresAt int64
}

// VerifyResult is the outcome of VerifySession. Reason is set when Valid is false.
type VerifyResult struct {
	Valid   bool
	Subject string
	Role    Role
	Reason  error
}

// AuditEvent is one audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink writes events as structured log entries.
type LogrusSink = internalaudit.LogrusSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(logger)
}

// MetricID identifies a metric slot.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess           = internalmetrics.MetricLoginSuccess
	MetricLoginFailure           = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited       = internalmetrics.MetricLoginRateLimited
	MetricAdminLoginSuccess      = internalmetrics.MetricAdminLoginSuccess
	MetricAdminLoginFailure      = internalmetrics.MetricAdminLoginFailure
	MetricValidateSuccess        = internalmetrics.MetricValidateSuccess
	MetricValidateMissingToken   = internalmetrics.MetricValidateMissingToken
	MetricValidateInvalidToken   = internalmetrics.MetricValidateInvalidToken
	MetricValidateExpiredToken   = internalmetrics.MetricValidateExpiredToken
	MetricValidateWrongTokenType = internalmetrics.MetricValidateWrongTokenType
	MetricValidateSessionExpired = internalmetrics.MetricValidateSessionExpired
	MetricSessionCreated         = internalmetrics.MetricSessionCreated
	MetricSessionSuperseded      = internalmetrics.MetricSessionSuperseded
	MetricLogout                 = internalmetrics.MetricLogout
	MetricCollaboratorFailure    = internalmetrics.MetricCollaboratorFailure
	MetricValidateLatency        = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a Metrics configured by cfg. When Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
