package draftauth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/draftboard/draftauth/credential"
	"github.com/draftboard/draftauth/internal/flows"
	"github.com/draftboard/draftauth/internal/rate"
)

// Authority derives a trustworthy [SessionView] for the current request and
// produces authorization verdicts. Construct it through [Builder.Build];
// after that it is immutable and safe for concurrent use.
type Authority struct {
	config      Config
	store       AccountStore
	credentials *credential.Manager
	limiter     *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
	policy      flows.RoutePolicy
}

// Close flushes and stops the audit dispatcher.
func (a *Authority) Close() {
	if a == nil {
		return
	}
	if a.audit != nil {
		a.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// buffer was full.
func (a *Authority) AuditDropped() uint64 {
	if a == nil || a.audit == nil {
		return 0
	}
	return a.audit.Dropped()
}

// MetricsSnapshot returns a deep copy of the current metrics.
func (a *Authority) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return a.metrics.Snapshot()
}

// Routes returns the configured route policy targets. The request gate
// uses them for redirect destinations.
func (a *Authority) Routes() RouteConfig {
	return a.config.Routes
}

// CookieName returns the credential cookie name.
func (a *Authority) CookieName() string {
	return a.config.Credential.CookieName
}

// CookieSecure reports whether the credential cookie requires TLS.
func (a *Authority) CookieSecure() bool {
	return a.config.Credential.CookieSecure
}

// CredentialTTL returns the configured credential validity window.
func (a *Authority) CredentialTTL() time.Duration {
	return a.config.Credential.TTL
}

func (a *Authority) metricInc(id MetricID) {
	if a == nil || a.metrics == nil {
		return
	}
	a.metrics.Inc(id)
}

// ResolveSession reconciles a raw credential with live account state and
// returns the request-scoped SessionView.
//
// On kind == RequestExplicitRefresh, the returned string is a superseding
// credential carrying the snapshot's DisplayName/AvatarRef; the caller must
// hand it back to the client. On normal requests it is empty and the view
// carries the credential's cached profile fields unchanged.
//
// Errors: [ErrUnauthenticated] (absent/invalid/expired credential, or the
// account no longer exists; the latter also matches [ErrAccountMissing]),
// [ErrStoreUnavailable] (fail closed), [ErrRefreshRateLimited].
func (a *Authority) ResolveSession(ctx context.Context, raw string, kind RequestKind) (*SessionView, string, error) {
	if a == nil || a.credentials == nil || a.store == nil {
		return nil, "", ErrAuthorityNotReady
	}

	start := time.Now()
	result := flows.RunResolve(ctx, raw, resolveKind(kind), flows.ResolveDeps{
		ParseCredential: a.parseCredential,
		LookupAccount:   a.lookupAccount,
		IssueCredential: a.issueCredential,
		CheckRefresh:    a.limiter.CheckRefresh,
		RateLimited:     rate.ErrRateLimited,
		NotFound:        ErrAccountMissing,
	})
	a.metrics.Observe(MetricResolveLatency, time.Since(start))

	switch result.Failure {
	case flows.ResolveFailureNone:
	case flows.ResolveFailureUnauthenticated:
		a.metricInc(MetricResolveUnauthenticated)
		if result.Err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUnauthenticated, result.Err)
		}
		return nil, "", ErrUnauthenticated
	case flows.ResolveFailureAccountMissing:
		// A credential for a deleted account is treated exactly like no
		// credential at all.
		a.metricInc(MetricResolveAccountMissing)
		a.emitAudit(ctx, auditEventResolveDenied, false, result.AccountID, result.Err, nil)
		return nil, "", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrAccountMissing)
	case flows.ResolveFailureStoreUnavailable:
		a.metricInc(MetricResolveStoreUnavailable)
		a.emitAudit(ctx, auditEventResolveDenied, false, result.AccountID, ErrStoreUnavailable, nil)
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	case flows.ResolveFailureRefreshRateLimited:
		a.metricInc(MetricRefreshRateLimited)
		a.emitAudit(ctx, auditEventRefreshRateLimited, false, result.AccountID, ErrRefreshRateLimited, nil)
		return nil, "", ErrRefreshRateLimited
	case flows.ResolveFailureRefreshIssue:
		return nil, "", fmt.Errorf("issue superseding credential: %w", result.Err)
	default:
		return nil, "", ErrUnauthenticated
	}

	view := sessionFromFlow(result.Session)
	a.metricInc(MetricResolveSuccess)
	if result.Superseded != "" {
		a.metricInc(MetricCredentialRefreshed)
		a.emitAudit(ctx, auditEventCredentialRefreshed, true, view.AccountID, nil, nil)
	}

	return view, result.Superseded, nil
}

// Authorize returns the verdict for a request. A nil view means the
// request is unauthenticated.
func (a *Authority) Authorize(ctx context.Context, view *SessionView, path string) Verdict {
	if a == nil {
		return VerdictRedirectSignIn
	}

	verdict := Verdict(flows.RunAuthorize(view != nil, view != nil && view.Deactivated, path, a.policy))

	switch verdict {
	case VerdictAllow:
		a.metricInc(MetricVerdictAllow)
	case VerdictRedirectSignIn:
		a.metricInc(MetricVerdictRedirectSignIn)
	case VerdictRedirectDeactivated:
		a.metricInc(MetricVerdictRedirectDeactivated)
		a.emitAudit(ctx, auditEventVerdictRedirect, false, view.AccountID, ErrDeactivated, func() map[string]string {
			return map[string]string{
				"path":    path,
				"verdict": verdict.String(),
			}
		})
	}

	return verdict
}

// RequireRole gates an operation on a minimum role. Deactivation is
// checked before role and overrides it. Used by admin-only and
// content-mutation operations, including every RPC handler behind the
// public transport endpoint.
//
// Errors: [ErrUnauthenticated] for a nil view, [ErrForbidden] otherwise
// (additionally matching [ErrDeactivated] when deactivation caused the
// rejection).
func (a *Authority) RequireRole(view *SessionView, min Role) error {
	if view == nil {
		return ErrUnauthenticated
	}
	if view.Deactivated {
		a.metricInc(MetricRoleDenied)
		return fmt.Errorf("%w: %w", ErrForbidden, ErrDeactivated)
	}
	if !view.Role.AtLeast(min) {
		a.metricInc(MetricRoleDenied)
		return fmt.Errorf("%w: role %s below %s", ErrForbidden, view.Role, min)
	}
	return nil
}

// SignIn verifies an identifier/password pair against the account store,
// enforces the sign-in throttle, and issues the initial signed credential.
// A deactivated account signs in successfully; Authorize then redirects it
// to the deactivated notice.
func (a *Authority) SignIn(ctx context.Context, identifier, password string) (string, *SessionView, error) {
	if a == nil || a.credentials == nil || a.store == nil {
		return "", nil, ErrAuthorityNotReady
	}

	ip := clientIPFromContext(ctx)
	result := flows.RunSignIn(ctx, identifier, password, ip, flows.SignInDeps{
		CheckRate:          a.limiter.CheckSignIn,
		IncrementRate:      a.limiter.IncrementSignIn,
		ResetRate:          a.limiter.ResetSignIn,
		VerifyCredentials:  a.store.VerifyCredentials,
		LookupAccount:      a.lookupAccount,
		IssueCredential:    a.issueCredential,
		RateLimited:        rate.ErrRateLimited,
		InvalidCredentials: ErrInvalidCredentials,
		NotFound:           ErrAccountMissing,
	})

	switch result.Failure {
	case flows.SignInFailureNone:
	case flows.SignInFailureInvalidCredentials:
		a.metricInc(MetricSignInFailure)
		a.emitAudit(ctx, auditEventSignInFailure, false, "", ErrInvalidCredentials, a.signInFailureMetadata(ctx, identifier))
		return "", nil, ErrInvalidCredentials
	case flows.SignInFailureRateLimited:
		a.metricInc(MetricSignInRateLimited)
		a.emitAudit(ctx, auditEventSignInRateLimited, false, "", ErrSignInRateLimited, a.signInFailureMetadata(ctx, identifier))
		return "", nil, ErrSignInRateLimited
	case flows.SignInFailureStoreUnavailable:
		a.emitAudit(ctx, auditEventSignInFailure, false, "", ErrStoreUnavailable, a.signInFailureMetadata(ctx, identifier))
		return "", nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	case flows.SignInFailureIssue:
		return "", nil, fmt.Errorf("issue credential: %w", result.Err)
	default:
		return "", nil, ErrInvalidCredentials
	}

	view := sessionFromFlow(result.Session)
	a.metricInc(MetricSignInSuccess)
	a.emitAudit(ctx, auditEventSignInSuccess, true, view.AccountID, nil, nil)

	return result.Credential, view, nil
}

func resolveKind(kind RequestKind) int {
	if kind == RequestExplicitRefresh {
		return flows.KindExplicitRefresh
	}
	return flows.KindNormal
}

func (a *Authority) parseCredential(raw string) (flows.CredentialClaims, error) {
	claims, err := a.credentials.Parse(raw)
	if err != nil {
		return flows.CredentialClaims{}, err
	}
	return flows.CredentialClaims{
		AccountID:   claims.AccountID,
		Role:        uint8(ParseRole(claims.Role)),
		DisplayName: claims.DisplayName,
		AvatarRef:   claims.AvatarRef,
		Deactivated: claims.Deactivated,
	}, nil
}

func (a *Authority) lookupAccount(ctx context.Context, accountID string) (flows.AccountRecord, error) {
	snapshot, err := a.store.Lookup(ctx, accountID)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return flows.AccountRecord{
		Role:        uint8(snapshot.Role),
		Deactivated: snapshot.Deactivated,
		DisplayName: snapshot.DisplayName,
		AvatarRef:   snapshot.AvatarRef,
	}, nil
}

func (a *Authority) issueCredential(s flows.SessionData) (string, error) {
	return a.credentials.Issue(credential.Profile{
		AccountID:   s.AccountID,
		Role:        Role(s.Role).String(),
		DisplayName: s.DisplayName,
		AvatarRef:   s.AvatarRef,
		Deactivated: s.Deactivated,
	})
}

func sessionFromFlow(s *flows.SessionData) *SessionView {
	return &SessionView{
		AccountID:   s.AccountID,
		Role:        Role(s.Role),
		DisplayName: s.DisplayName,
		AvatarRef:   s.AvatarRef,
		Deactivated: s.Deactivated,
	}
}

// signInFailureMetadata builds failure-event metadata lazily so the
// attempt-counter read only happens when auditing is enabled.
func (a *Authority) signInFailureMetadata(ctx context.Context, identifier string) func() map[string]string {
	return func() map[string]string {
		metadata := map[string]string{
			"identifier": identifier,
		}
		if attempts, err := a.limiter.SignInAttempts(ctx, identifier); err == nil && attempts > 0 {
			metadata["attempts"] = strconv.Itoa(attempts)
		}
		return metadata
	}
}
