package flows

import "context"

// CredentialClaims is the flow-local view of a parsed credential.
// Role and Deactivated here are the cached issue-time values; RunResolve
// always overlays live account state on top of them.
type CredentialClaims struct {
	AccountID   string
	Role        uint8
	DisplayName string
	AvatarRef   string
	Deactivated bool
}

// AccountRecord is the flow-local account snapshot shape.
type AccountRecord struct {
	Role        uint8
	Deactivated bool
	DisplayName string
	AvatarRef   string
}

// SessionData is the flow-local reconciled session shape the root package
// maps to its public SessionView.
type SessionData struct {
	AccountID   string
	Role        uint8
	DisplayName string
	AvatarRef   string
	Deactivated bool
}

// ParseCredentialFunc parses and verifies a raw credential.
type ParseCredentialFunc func(raw string) (CredentialClaims, error)

// LookupAccountFunc reads the live account snapshot. It must return the
// configured not-found sentinel for unknown accounts and any other error
// for infrastructure failure.
type LookupAccountFunc func(ctx context.Context, accountID string) (AccountRecord, error)

// IssueCredentialFunc signs a superseding credential for the session.
type IssueCredentialFunc func(s SessionData) (string, error)
