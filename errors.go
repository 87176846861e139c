package draftauth

import "errors"

var (
	// ErrUnauthenticated means no credential, an invalid/expired credential,
	// or a credential whose account no longer exists. Recovered by
	// redirecting to sign-in, never surfaced as a hard error.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is authenticated but the role gate or
	// deactivation check rejected the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrAccountMissing means the credential references a deleted account.
	// The authority wraps it in ErrUnauthenticated; stores return it from
	// Lookup for an unknown account ID.
	ErrAccountMissing = errors.New("account missing")
	// ErrStoreUnavailable means the account store lookup failed for
	// infrastructure reasons. The request fails closed.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrInvalidCredentials is returned by sign-in for a bad
	// identifier/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDeactivated is returned by RequireRole for a deactivated account.
	// It wraps ErrForbidden.
	ErrDeactivated = errors.New("account deactivated")
	// ErrSignInRateLimited means the sign-in attempt budget for the
	// identifier or IP is exhausted.
	ErrSignInRateLimited = errors.New("sign-in rate limited")
	// ErrRefreshRateLimited means the explicit-refresh budget for the
	// account is exhausted.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrAuthorityNotReady is returned when methods run on an Authority
	// that was not built through Builder.Build.
	ErrAuthorityNotReady = errors.New("authority not initialized")
	// ErrStoreReadOnly is returned by the account status operations when
	// the configured store does not implement AccountStatusWriter.
	ErrStoreReadOnly = errors.New("account store does not support status changes")
)
