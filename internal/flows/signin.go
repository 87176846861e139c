package flows

import (
	"context"
	"errors"
)

// SignInFailureKind classifies sign-in failures for root-level mapping.
type SignInFailureKind int

const (
	SignInFailureNone SignInFailureKind = iota
	SignInFailureInvalidCredentials
	SignInFailureRateLimited
	SignInFailureStoreUnavailable
	SignInFailureIssue
)

// SignInResult returns either the issued credential and session, or a
// classified failure.
type SignInResult struct {
	Failure    SignInFailureKind
	Err        error
	Credential string
	Session    *SessionData
}

// SignInDeps captures sign-in dependencies.
type SignInDeps struct {
	CheckRate     func(ctx context.Context, identifier, ip string) error
	IncrementRate func(ctx context.Context, identifier, ip string) error
	ResetRate     func(ctx context.Context, identifier, ip string) error

	// VerifyCredentials returns the account ID for a valid pair and the
	// configured invalid-credentials sentinel otherwise.
	VerifyCredentials func(ctx context.Context, identifier, password string) (string, error)
	LookupAccount     LookupAccountFunc
	IssueCredential   IssueCredentialFunc

	RateLimited        error
	InvalidCredentials error
	NotFound           error
}

// RunSignIn verifies credentials within the rate budget and issues the
// initial signed credential. A deactivated account still signs in; the
// authorization verdict downstream redirects it to the deactivated notice.
func RunSignIn(ctx context.Context, identifier, password, ip string, deps SignInDeps) SignInResult {
	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, identifier, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return SignInResult{Failure: SignInFailureRateLimited, Err: err}
			}
			return SignInResult{Failure: SignInFailureStoreUnavailable, Err: err}
		}
	}

	accountID, err := deps.VerifyCredentials(ctx, identifier, password)
	if err != nil {
		if deps.InvalidCredentials != nil && errors.Is(err, deps.InvalidCredentials) {
			if deps.IncrementRate != nil {
				if incErr := deps.IncrementRate(ctx, identifier, ip); incErr != nil &&
					deps.RateLimited != nil && errors.Is(incErr, deps.RateLimited) {
					return SignInResult{Failure: SignInFailureRateLimited, Err: incErr}
				}
			}
			return SignInResult{Failure: SignInFailureInvalidCredentials, Err: err}
		}
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			// Unknown identifier is indistinguishable from a bad password.
			if deps.IncrementRate != nil {
				_ = deps.IncrementRate(ctx, identifier, ip)
			}
			return SignInResult{Failure: SignInFailureInvalidCredentials, Err: err}
		}
		return SignInResult{Failure: SignInFailureStoreUnavailable, Err: err}
	}

	account, err := deps.LookupAccount(ctx, accountID)
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			return SignInResult{Failure: SignInFailureInvalidCredentials, Err: err}
		}
		return SignInResult{Failure: SignInFailureStoreUnavailable, Err: err}
	}

	session := &SessionData{
		AccountID:   accountID,
		Role:        account.Role,
		DisplayName: account.DisplayName,
		AvatarRef:   account.AvatarRef,
		Deactivated: account.Deactivated,
	}

	raw, err := deps.IssueCredential(*session)
	if err != nil {
		return SignInResult{Failure: SignInFailureIssue, Err: err}
	}

	if deps.ResetRate != nil {
		_ = deps.ResetRate(ctx, identifier, ip)
	}

	return SignInResult{Credential: raw, Session: session}
}
