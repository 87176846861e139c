package draftauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockAccountStore struct {
	mu        sync.Mutex
	accounts  map[string]AccountSnapshot
	passwords map[string]string // identifier -> plaintext
	ids       map[string]string // identifier -> account ID

	lookupErr error
	verifyErr error

	lookupCalls int
	verifyCalls int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts:  make(map[string]AccountSnapshot),
		passwords: make(map[string]string),
		ids:       make(map[string]string),
	}
}

func (s *mockAccountStore) put(identifier, password string, snapshot AccountSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[snapshot.AccountID] = snapshot
	s.ids[identifier] = snapshot.AccountID
	s.passwords[identifier] = password
}

func (s *mockAccountStore) update(accountID string, mutate func(*AccountSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.accounts[accountID]
	mutate(&snapshot)
	s.accounts[accountID] = snapshot
}

func (s *mockAccountStore) remove(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, accountID)
}

func (s *mockAccountStore) Lookup(_ context.Context, accountID string) (AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookupCalls++
	if s.lookupErr != nil {
		return AccountSnapshot{}, s.lookupErr
	}

	snapshot, ok := s.accounts[accountID]
	if !ok {
		return AccountSnapshot{}, ErrAccountMissing
	}
	return snapshot, nil
}

func (s *mockAccountStore) SetDeactivated(_ context.Context, accountID string, deactivated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountMissing
	}
	snapshot.Deactivated = deactivated
	s.accounts[accountID] = snapshot
	return nil
}

func (s *mockAccountStore) SetRole(_ context.Context, accountID string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountMissing
	}
	snapshot.Role = role
	s.accounts[accountID] = snapshot
	return nil
}

func (s *mockAccountStore) VerifyCredentials(_ context.Context, identifier, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verifyCalls++
	if s.verifyErr != nil {
		return "", s.verifyErr
	}

	id, ok := s.ids[identifier]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if s.passwords[identifier] != password {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Credential.PrivateKey = priv
	cfg.Credential.PublicKey = pub
	cfg.Credential.CookieSecure = false
	return cfg
}

func newTestAuthority(t *testing.T, cfg Config, store AccountStore) (*Authority, func()) {
	t.Helper()
	return newTestAuthorityWithSink(t, cfg, store, nil)
}

func newTestAuthorityWithSink(t *testing.T, cfg Config, store AccountStore, sink AuditSink) (*Authority, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	builder := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(store).
		WithMetricsEnabled(true)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	authority, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("build failed: %v", err)
	}

	done := func() {
		authority.Close()
		_ = client.Close()
		mr.Close()
	}
	return authority, done
}

func seedMember(store *mockAccountStore) AccountSnapshot {
	snapshot := AccountSnapshot{
		AccountID:   "acct-1",
		Role:        RoleMember,
		DisplayName: "Alice",
		AvatarRef:   "avatars/alice.png",
	}
	store.put("alice@example.com", "correct-horse", snapshot)
	return snapshot
}
