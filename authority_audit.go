package draftauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSignInSuccess       = "sign_in_success"
	auditEventSignInFailure       = "sign_in_failure"
	auditEventSignInRateLimited   = "sign_in_rate_limited"
	auditEventResolveDenied       = "session_resolve_denied"
	auditEventCredentialRefreshed = "credential_refreshed"
	auditEventRefreshRateLimited  = "refresh_rate_limited"
	auditEventVerdictRedirect     = "verdict_redirect"
	auditEventAccountStatusChange = "account_status_change"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrAccountMissing     AuditErrorCode = "account_missing"
	auditErrStoreUnavailable   AuditErrorCode = "store_unavailable"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrDeactivated        AuditErrorCode = "deactivated"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (a *Authority) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if a == nil || a.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	a.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAccountMissing):
		return auditErrAccountMissing
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrDeactivated):
		return auditErrDeactivated
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrSignInRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	default:
		return auditErrInternal
	}
}
