package draftauth

import (
	"context"
	"strings"
)

// Role is the account role used by authorization gates.
// Ordering: RoleMember < RoleAdmin < RoleOwner. Admin-only gates treat
// RoleAdmin and RoleOwner as equal; only owner-exclusive operations
// (outside this package) distinguish RoleOwner.
type Role uint8

const (
	// RoleMember is the default role for regular team members.
	RoleMember Role = iota
	// RoleAdmin can manage accounts and moderate content.
	RoleAdmin
	// RoleOwner is the workspace owner. For admin gates it is equal to RoleAdmin.
	RoleOwner
)

// AtLeast reports whether r satisfies a gate requiring min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// String returns the wire name of the role ("member", "admin", "owner").
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "member"
	}
}

// ParseRole maps a wire name back to a Role. Unknown or empty names fall
// back to RoleMember, so a credential minted before a role rename can
// never escalate by parse accident.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "owner":
		return RoleOwner
	default:
		return RoleMember
	}
}

// AccountSnapshot is the live, authoritative subset of account state the
// authority reads on every request. It is mutated only by account
// management operations external to this package (e.g. an admin
// deactivating a user) and is never written here.
type AccountSnapshot struct {
	AccountID   string
	Role        Role
	Deactivated bool

	// Profile fields, overlaid onto the session only on an explicit
	// refresh request.
	DisplayName string
	AvatarRef   string
}

// SessionView is the reconciled, request-scoped identity handed to
// downstream handlers. It is derived fresh each request from the credential
// claims plus the current AccountSnapshot and is never persisted.
//
// Role and Deactivated always reflect the snapshot at the time of the
// request. DisplayName and AvatarRef are carried from the credential on
// normal requests and re-read from the snapshot on an explicit refresh.
type SessionView struct {
	AccountID   string
	Role        Role
	DisplayName string
	AvatarRef   string
	Deactivated bool
}

// RequestKind tags how a session resolution was triggered. An explicit
// refresh additionally overlays profile fields from the account snapshot
// and issues a superseding credential; ordinary requests do not.
type RequestKind int

const (
	// RequestNormal is an ordinary protected request.
	RequestNormal RequestKind = iota
	// RequestExplicitRefresh is a client-triggered session refresh.
	RequestExplicitRefresh
)

// Verdict is the authorization outcome for a request.
type Verdict int

const (
	// VerdictAllow lets the protected handler run.
	VerdictAllow Verdict = iota
	// VerdictRedirectSignIn redirects an unauthenticated request to sign-in.
	VerdictRedirectSignIn
	// VerdictRedirectDeactivated redirects a deactivated account to the
	// deactivated notice, regardless of role.
	VerdictRedirectDeactivated
)

// String returns a stable name for logging and audit metadata.
func (v Verdict) String() string {
	switch v {
	case VerdictRedirectSignIn:
		return "redirect_sign_in"
	case VerdictRedirectDeactivated:
		return "redirect_deactivated"
	default:
		return "allow"
	}
}

// AccountStore is the interface callers must implement to integrate
// draftauth with their account database. Lookup runs once per protected
// request and must read a single authoritative row; VerifyCredentials is
// used only at sign-in.
//
// Lookup returns [ErrAccountMissing] when no account matches, and any
// other error for infrastructure failures (surfaced by the authority as
// [ErrStoreUnavailable]). VerifyCredentials returns the account ID on
// success and [ErrInvalidCredentials] on a bad identifier/password pair.
type AccountStore interface {
	Lookup(ctx context.Context, accountID string) (AccountSnapshot, error)
	VerifyCredentials(ctx context.Context, identifier, password string) (string, error)
}
