package flows

import (
	"context"
	"errors"
)

// ResolveFailureKind classifies resolution failures for root-level mapping.
type ResolveFailureKind int

const (
	ResolveFailureNone ResolveFailureKind = iota
	// ResolveFailureUnauthenticated covers an absent, malformed, expired,
	// or badly signed credential.
	ResolveFailureUnauthenticated
	// ResolveFailureAccountMissing covers a valid credential whose account
	// was deleted after issuance.
	ResolveFailureAccountMissing
	// ResolveFailureStoreUnavailable covers account store infrastructure
	// errors. The request fails closed.
	ResolveFailureStoreUnavailable
	// ResolveFailureRefreshRateLimited covers explicit refreshes rejected
	// by the throttle.
	ResolveFailureRefreshRateLimited
	// ResolveFailureRefreshIssue covers a failure to sign the superseding
	// credential on an explicit refresh.
	ResolveFailureRefreshIssue
)

// Request kinds, passed as ints so flows stay decoupled from the root
// package enum.
const (
	KindNormal = iota
	KindExplicitRefresh
)

// ResolveResult returns either the reconciled session (plus a superseding
// credential on explicit refresh) or a classified failure.
type ResolveResult struct {
	Failure ResolveFailureKind
	Err     error
	// AccountID is the credential subject. Populated once the credential
	// parses, including on failures past that point, so callers can
	// attribute denials to the account.
	AccountID  string
	Session    *SessionData
	Superseded string
}

// ResolveDeps captures session resolution dependencies.
type ResolveDeps struct {
	ParseCredential ParseCredentialFunc
	LookupAccount   LookupAccountFunc
	IssueCredential IssueCredentialFunc

	// CheckRefresh enforces the explicit-refresh budget. Nil disables the
	// throttle. RateLimited classifies its rejection error.
	CheckRefresh func(ctx context.Context, accountID string) error
	RateLimited  error

	// NotFound is the store sentinel distinguishing a deleted account from
	// an outage.
	NotFound error
}

// RunResolve executes the per-request session derivation state machine:
//
//	no credential                -> Unauthenticated
//	invalid/expired credential   -> Unauthenticated
//	valid credential -> lookup   -> {Active, Deactivated, AccountMissing}
//	AccountMissing               -> Unauthenticated
//	store failure                -> StoreUnavailable (fail closed)
//
// Role and Deactivated always come from the lookup, never from the cached
// claims. DisplayName/AvatarRef come from the claims on KindNormal and from
// the lookup on KindExplicitRefresh, which also issues a superseding
// credential carrying the refreshed fields.
func RunResolve(ctx context.Context, raw string, kind int, deps ResolveDeps) ResolveResult {
	if raw == "" {
		return ResolveResult{Failure: ResolveFailureUnauthenticated}
	}

	claims, err := deps.ParseCredential(raw)
	if err != nil {
		return ResolveResult{Failure: ResolveFailureUnauthenticated, Err: err}
	}

	account, err := deps.LookupAccount(ctx, claims.AccountID)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return ResolveResult{Failure: ResolveFailureAccountMissing, Err: err, AccountID: claims.AccountID}
		}
		return ResolveResult{Failure: ResolveFailureStoreUnavailable, Err: err, AccountID: claims.AccountID}
	}

	session := &SessionData{
		AccountID:   claims.AccountID,
		Role:        account.Role,
		DisplayName: claims.DisplayName,
		AvatarRef:   claims.AvatarRef,
		Deactivated: account.Deactivated,
	}

	if kind != KindExplicitRefresh {
		return ResolveResult{Session: session, AccountID: claims.AccountID}
	}

	if deps.CheckRefresh != nil {
		if err := deps.CheckRefresh(ctx, claims.AccountID); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return ResolveResult{Failure: ResolveFailureRefreshRateLimited, Err: err, AccountID: claims.AccountID}
			}
			return ResolveResult{Failure: ResolveFailureStoreUnavailable, Err: err, AccountID: claims.AccountID}
		}
	}

	session.DisplayName = account.DisplayName
	session.AvatarRef = account.AvatarRef

	superseded, err := deps.IssueCredential(*session)
	if err != nil {
		return ResolveResult{Failure: ResolveFailureRefreshIssue, Err: err, AccountID: claims.AccountID}
	}

	return ResolveResult{Session: session, Superseded: superseded, AccountID: claims.AccountID}
}
