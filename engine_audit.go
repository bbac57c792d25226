package gatekeeper

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventAdminLoginSuccess = "admin_login_success"
	auditEventAdminLoginFailure = "admin_login_failure"
	auditEventLogout            = "logout"
	auditEventSessionSuperseded = "session_superseded"
	auditEventValidateRejected  = "validate_rejected"
)

// AuditErrorCode is the stable error classification attached to audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrMissingToken       AuditErrorCode = "missing_token"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrWrongTokenType     AuditErrorCode = "wrong_token_type"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	role Role,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		Subject:   subject,
		Role:      string(role),
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrMissingToken):
		return auditErrMissingToken
	case errors.Is(err, ErrExpiredToken):
		return auditErrExpiredToken
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrWrongTokenType):
		return auditErrWrongTokenType
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrCollaboratorUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
