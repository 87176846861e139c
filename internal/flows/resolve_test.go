package flows

import (
	"context"
	"errors"
	"testing"
)

var (
	errNotFound    = errors.New("not found")
	errRateLimited = errors.New("rate limited")
)

func workingDeps(account AccountRecord) ResolveDeps {
	return ResolveDeps{
		ParseCredential: func(raw string) (CredentialClaims, error) {
			return CredentialClaims{
				AccountID:   "acct-1",
				Role:        0,
				DisplayName: "Cached Name",
				AvatarRef:   "cached.png",
			}, nil
		},
		LookupAccount: func(context.Context, string) (AccountRecord, error) {
			return account, nil
		},
		IssueCredential: func(SessionData) (string, error) {
			return "superseding-credential", nil
		},
		RateLimited: errRateLimited,
		NotFound:    errNotFound,
	}
}

func TestResolveEmptyCredential(t *testing.T) {
	result := RunResolve(context.Background(), "", KindNormal, workingDeps(AccountRecord{}))
	if result.Failure != ResolveFailureUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", result.Failure)
	}
}

func TestResolveParseFailure(t *testing.T) {
	deps := workingDeps(AccountRecord{})
	deps.ParseCredential = func(string) (CredentialClaims, error) {
		return CredentialClaims{}, errors.New("bad signature")
	}

	result := RunResolve(context.Background(), "raw", KindNormal, deps)
	if result.Failure != ResolveFailureUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", result.Failure)
	}
	if result.Err == nil {
		t.Fatal("expected the parse error to be carried")
	}
}

func TestResolveAccountMissing(t *testing.T) {
	deps := workingDeps(AccountRecord{})
	deps.LookupAccount = func(context.Context, string) (AccountRecord, error) {
		return AccountRecord{}, errNotFound
	}

	result := RunResolve(context.Background(), "raw", KindNormal, deps)
	if result.Failure != ResolveFailureAccountMissing {
		t.Fatalf("expected account missing, got %v", result.Failure)
	}
	if result.AccountID != "acct-1" {
		t.Fatalf("expected the parsed subject on the result, got %q", result.AccountID)
	}
}

func TestResolveStoreFailure(t *testing.T) {
	deps := workingDeps(AccountRecord{})
	deps.LookupAccount = func(context.Context, string) (AccountRecord, error) {
		return AccountRecord{}, errors.New("connection refused")
	}

	result := RunResolve(context.Background(), "raw", KindNormal, deps)
	if result.Failure != ResolveFailureStoreUnavailable {
		t.Fatalf("expected store unavailable, got %v", result.Failure)
	}
	if result.AccountID != "acct-1" {
		t.Fatalf("expected the parsed subject on the result, got %q", result.AccountID)
	}
}

func TestResolveNormalOverlaysLiveRoleAndDeactivation(t *testing.T) {
	account := AccountRecord{
		Role:        2,
		Deactivated: true,
		DisplayName: "Live Name",
		AvatarRef:   "live.png",
	}

	result := RunResolve(context.Background(), "raw", KindNormal, workingDeps(account))
	if result.Failure != ResolveFailureNone {
		t.Fatalf("expected success, got %v (%v)", result.Failure, result.Err)
	}
	if result.Superseded != "" {
		t.Fatal("normal resolve must not issue a credential")
	}

	s := result.Session
	if s.Role != 2 || !s.Deactivated {
		t.Fatalf("expected live role and deactivation, got %+v", s)
	}
	// Cosmetic fields stay cached on a normal request.
	if s.DisplayName != "Cached Name" || s.AvatarRef != "cached.png" {
		t.Fatalf("expected cached profile fields, got %+v", s)
	}
}

func TestResolveExplicitRefreshOverlaysProfile(t *testing.T) {
	account := AccountRecord{
		Role:        1,
		DisplayName: "Live Name",
		AvatarRef:   "live.png",
	}

	result := RunResolve(context.Background(), "raw", KindExplicitRefresh, workingDeps(account))
	if result.Failure != ResolveFailureNone {
		t.Fatalf("expected success, got %v (%v)", result.Failure, result.Err)
	}
	if result.Superseded != "superseding-credential" {
		t.Fatalf("expected superseding credential, got %q", result.Superseded)
	}

	s := result.Session
	if s.DisplayName != "Live Name" || s.AvatarRef != "live.png" {
		t.Fatalf("expected live profile fields, got %+v", s)
	}
}

func TestResolveExplicitRefreshRateLimited(t *testing.T) {
	deps := workingDeps(AccountRecord{})
	deps.CheckRefresh = func(context.Context, string) error {
		return errRateLimited
	}

	result := RunResolve(context.Background(), "raw", KindExplicitRefresh, deps)
	if result.Failure != ResolveFailureRefreshRateLimited {
		t.Fatalf("expected refresh rate limited, got %v", result.Failure)
	}
	if result.AccountID != "acct-1" {
		t.Fatalf("expected the parsed subject on the result, got %q", result.AccountID)
	}
}

func TestResolveExplicitRefreshIssueFailure(t *testing.T) {
	deps := workingDeps(AccountRecord{})
	deps.IssueCredential = func(SessionData) (string, error) {
		return "", errors.New("signer broken")
	}

	result := RunResolve(context.Background(), "raw", KindExplicitRefresh, deps)
	if result.Failure != ResolveFailureRefreshIssue {
		t.Fatalf("expected issue failure, got %v", result.Failure)
	}
}
