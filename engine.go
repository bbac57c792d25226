package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/gatekeeper/credentials"
	internalaudit "github.com/MrEthical07/gatekeeper/internal/audit"
	"github.com/MrEthical07/gatekeeper/internal/flows"
	"github.com/MrEthical07/gatekeeper/internal/rate"
	"github.com/MrEthical07/gatekeeper/jwt"
	"github.com/MrEthical07/gatekeeper/session"
	"github.com/sirupsen/logrus"
)

// Engine issues tokens, tracks the sessions they belong to and validates them
// on every protected request.
//
// An Engine is built once by Builder.Build and is safe for concurrent use.
type Engine struct {
	config        Config
	jwtManager    *jwt.Manager
	sessionStore  session.Store
	userProvider  credentials.Provider
	userDirectory credentials.Directory
	adminProvider credentials.Provider
	rateLimiter   *rate.Limiter
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	logger        logrus.FieldLogger
	now           func() time.Time
	newSessionID  func() string

	flowDeps flows.Deps
}

func (e *Engine) initFlowDeps() {
	e.flowDeps = flows.Deps{
		UserLogin:  e.loginDeps(RoleUser, e.userProvider),
		AdminLogin: e.loginDeps(RoleAdmin, e.adminProvider),
		Validate: flows.ValidateDeps{
			Decode:   e.jwtManager.Decode,
			Sessions: e.sessionStore,
		},
		Logout: flows.LogoutDeps{
			Decode:   e.jwtManager.Decode,
			Sessions: e.sessionStore,
		},
	}
}

func (e *Engine) loginDeps(role Role, provider credentials.Provider) flows.LoginDeps {
	deps := flows.LoginDeps{
		Role:              role,
		TTL:               e.config.JWT.TTL,
		VerifyCredentials: provider.VerifyCredentials,
		NewSessionID:      e.newSessionID,
		Now:               e.now,
		Issue:             e.jwtManager.Issue,
		Sessions:          e.sessionStore,
	}
	if deps.TTL <= 0 {
		deps.TTL = jwt.DefaultTTL
	}

	if e.rateLimiter != nil {
		identifier := func(username string) string { return string(role) + ":" + username }
		deps.CheckThrottle = func(ctx context.Context, username string) error {
			return e.rateLimiter.CheckLogin(ctx, identifier(username), clientIPFromContext(ctx))
		}
		deps.RecordFailure = func(ctx context.Context, username string) error {
			return e.rateLimiter.IncrementLogin(ctx, identifier(username), clientIPFromContext(ctx))
		}
		deps.ResetThrottle = func(ctx context.Context, username string) error {
			return e.rateLimiter.ResetLogin(ctx, identifier(username))
		}
		deps.RateLimitedErr = rate.ErrRateLimited
	}

	return deps
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies a regular user against the user provider and opens a
// session for (username, user). A previous session for the same user is
// replaced.
//
// A credential mismatch yields ErrInvalidCredentials whether or not the
// username exists.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.login(ctx, username, password, e.flowDeps.UserLogin)
}

// AdminLogin checks the single admin credential pair and opens a session for
// role admin. Any mismatch yields ErrUnauthorized.
func (e *Engine) AdminLogin(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.login(ctx, username, password, e.flowDeps.AdminLogin)
}

func (e *Engine) login(ctx context.Context, username, password string, deps flows.LoginDeps) (*LoginResult, error) {
	admin := deps.Role == RoleAdmin
	rejected := ErrInvalidCredentials
	successMetric, failureMetric := MetricLoginSuccess, MetricLoginFailure
	successEvent, failureEvent := auditEventLoginSuccess, auditEventLoginFailure
	if admin {
		rejected = ErrUnauthorized
		successMetric, failureMetric = MetricAdminLoginSuccess, MetricAdminLoginFailure
		successEvent, failureEvent = auditEventAdminLoginSuccess, auditEventAdminLoginFailure
	}
	log := e.logger.WithFields(logrus.Fields{"op": "login", "role": deps.Role, "username": username})

	result := flows.RunLogin(ctx, username, password, deps)
	if result.ThrottleResetErr != nil {
		log.WithError(result.ThrottleResetErr).Warn("login throttle reset failed")
	}
	switch result.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRejected:
		e.metricInc(failureMetric)
		e.emitAudit(ctx, failureEvent, false, username, deps.Role, "", rejected, nil)
		log.Debug("login rejected")
		return nil, rejected
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.metricInc(failureMetric)
		e.emitAudit(ctx, failureEvent, false, username, deps.Role, "", ErrLoginRateLimited, nil)
		log.Debug("login throttled")
		return nil, ErrLoginRateLimited
	default:
		e.metricInc(MetricCollaboratorFailure)
		e.metricInc(failureMetric)
		err := fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, result.Err)
		e.emitAudit(ctx, failureEvent, false, username, deps.Role, "", err, func() map[string]string {
			return map[string]string{"stage": loginStage(result.Failure)}
		})
		log.WithError(result.Err).WithField("stage", loginStage(result.Failure)).Error("login failed")
		return nil, err
	}

	sess := result.Session
	if result.Superseded != nil {
		e.metricInc(MetricSessionSuperseded)
		e.emitAudit(ctx, auditEventSessionSuperseded, true, sess.Subject, sess.Role, result.Superseded.ID, nil, func() map[string]string {
			return map[string]string{"replaced_by": sess.ID}
		})
	}
	e.metricInc(successMetric)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, successEvent, true, sess.Subject, sess.Role, sess.ID, nil, nil)
	log.WithField("session_id", sess.ID).Debug("login succeeded")

	return &LoginResult{
		Token:     result.Token,
		Username:  sess.Subject,
		Role:      sess.Role,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func loginStage(kind flows.LoginFailureKind) string {
	switch kind {
	case flows.LoginFailureThrottleBackend:
		return "throttle"
	case flows.LoginFailureProvider:
		return "credentials"
	case flows.LoginFailureIssue:
		return "issue"
	case flows.LoginFailureStore:
		return "session_store"
	default:
		return "unknown"
	}
}

// Validate decodes token, checks that it was issued for role required and
// that its session is still live.
//
// Checks run in order and the first failure wins: ErrMissingToken,
// ErrExpiredToken or ErrInvalidToken, ErrWrongTokenType, ErrSessionExpired.
func (e *Engine) Validate(ctx context.Context, token string, required Role) (*Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if !required.Valid() {
		return nil, fmt.Errorf("unknown role %q", required)
	}
	return e.validate(ctx, token, required)
}

func (e *Engine) validate(ctx context.Context, token string, required Role) (*Identity, error) {
	var start time.Time
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	result := flows.RunValidate(ctx, token, required, e.flowDeps.Validate)
	if result.Failure == flows.ValidateFailureNone {
		e.metricInc(MetricValidateSuccess)
		return &Identity{
			Subject:   result.Claims.Username,
			Role:      result.Claims.Role(),
			SessionID: result.Claims.SessionID(),
		}, nil
	}

	var err error
	switch result.Failure {
	case flows.ValidateFailureMissingToken:
		e.metricInc(MetricValidateMissingToken)
		err = ErrMissingToken
	case flows.ValidateFailureExpiredToken:
		e.metricInc(MetricValidateExpiredToken)
		err = ErrExpiredToken
	case flows.ValidateFailureInvalidToken:
		e.metricInc(MetricValidateInvalidToken)
		err = result.Err
		if !errors.Is(err, ErrInvalidToken) {
			err = fmt.Errorf("%w: %v", ErrInvalidToken, result.Err)
		}
	case flows.ValidateFailureWrongTokenType:
		e.metricInc(MetricValidateWrongTokenType)
		err = ErrWrongTokenType
	case flows.ValidateFailureSessionExpired:
		e.metricInc(MetricValidateSessionExpired)
		err = ErrSessionExpired
	default:
		e.metricInc(MetricCollaboratorFailure)
		e.logger.WithError(result.Err).WithField("op", "validate").Error("session lookup failed")
		err = fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, result.Err)
	}

	subject, role, sessionID := "", Role(""), ""
	if result.Claims != nil {
		subject, role, sessionID = result.Claims.Username, result.Claims.Role(), result.Claims.SessionID()
	}
	e.emitAudit(ctx, auditEventValidateRejected, false, subject, role, sessionID, err, func() map[string]string {
		return map[string]string{"required_role": string(required)}
	})

	return nil, err
}

// Logout revokes the session named by token. It succeeds whether or not the
// session was still registered, so repeated calls are harmless.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	result := flows.RunLogoutByToken(ctx, token, e.flowDeps.Logout)
	switch result.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, result.Key.Subject, result.Key.Role, result.SessionID, nil, nil)
		e.logger.WithFields(logrus.Fields{"op": "logout", "key": result.Key.String()}).Debug("session removed")
		return nil
	case flows.LogoutFailureMissingToken:
		return ErrMissingToken
	case flows.LogoutFailureExpiredToken:
		return ErrExpiredToken
	case flows.LogoutFailureInvalidToken:
		if errors.Is(result.Err, ErrInvalidToken) {
			return result.Err
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, result.Err)
	default:
		e.metricInc(MetricCollaboratorFailure)
		e.logger.WithError(result.Err).WithFields(logrus.Fields{"op": "logout", "key": result.Key.String()}).Error("session removal failed")
		err := fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, result.Err)
		e.emitAudit(ctx, auditEventLogout, false, result.Key.Subject, result.Key.Role, result.SessionID, err, nil)
		return err
	}
}

// VerifySession reports whether token names a live session of either role.
// It never mutates the registry.
func (e *Engine) VerifySession(ctx context.Context, token string) VerifyResult {
	if e == nil {
		return VerifyResult{Reason: ErrEngineNotReady}
	}

	identity, err := e.validate(ctx, token, "")
	if err != nil {
		return VerifyResult{Reason: err}
	}
	return VerifyResult{
		Valid:   true,
		Subject: identity.Subject,
		Role:    identity.Role,
	}
}

// ListUsers returns every registered username in insertion order.
func (e *Engine) ListUsers(ctx context.Context) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.userDirectory == nil {
		return nil, fmt.Errorf("%w: no user directory configured", ErrCollaboratorUnavailable)
	}

	users, err := e.userDirectory.ListUsernames(ctx)
	if err != nil {
		e.metricInc(MetricCollaboratorFailure)
		e.logger.WithError(err).WithField("op", "list_users").Error("user directory failed")
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	return users, nil
}

// CountUsers returns the number of registered users.
func (e *Engine) CountUsers(ctx context.Context) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if e.userDirectory == nil {
		return 0, fmt.Errorf("%w: no user directory configured", ErrCollaboratorUnavailable)
	}

	n, err := e.userDirectory.CountUsers(ctx)
	if err != nil {
		e.metricInc(MetricCollaboratorFailure)
		e.logger.WithError(err).WithField("op", "count_users").Error("user directory failed")
		return 0, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	return n, nil
}

// SessionCount returns the number of live sessions registered for role.
func (e *Engine) SessionCount(ctx context.Context, role Role) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.sessionStore.Count(ctx, role)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	return n, nil
}

// Session returns the live session registered under (subject, role), or
// ErrSessionExpired when there is none.
func (e *Engine) Session(ctx context.Context, subject string, role Role) (*session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	sess, err := e.sessionStore.Get(ctx, session.Key{Subject: subject, Role: role})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	return sess, nil
}

// Config returns a copy of the Engine's configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}
