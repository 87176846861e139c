package draftauth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithKeys(t *testing.T) {
	cfg := testConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with keys to validate: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero ttl", func(c *Config) { c.Credential.TTL = 0 }, "TTL"},
		{"bad signing method", func(c *Config) { c.Credential.SigningMethod = "rs256" }, "signing method"},
		{"missing private key", func(c *Config) { c.Credential.PrivateKey = nil }, "PrivateKey"},
		{"missing verify key", func(c *Config) { c.Credential.PublicKey = nil; c.Credential.VerifyKeys = nil }, "PublicKey"},
		{"excessive leeway", func(c *Config) { c.Credential.Leeway = 5 * time.Minute }, "Leeway"},
		{"empty cookie name", func(c *Config) { c.Credential.CookieName = " " }, "CookieName"},
		{"relative sign-in path", func(c *Config) { c.Routes.SignInPath = "sign-in" }, "SignInPath"},
		{"relative static prefix", func(c *Config) { c.Routes.StaticPrefixes = []string{"static/"} }, "StaticPrefixes"},
		{"throttle without budget", func(c *Config) { c.Security.MaxSignInAttempts = 0 }, "MaxSignInAttempts"},
		{"refresh throttle without cooldown", func(c *Config) { c.Security.RefreshCooldown = 0 }, "RefreshCooldown"},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
	}

	for _, tc := range cases {
		cfg := testConfig(t)
		tc.mutate(&cfg)

		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation to fail", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	store := newMockAccountStore()
	seedMember(store)

	cfg := testConfig(t)
	authority, done := newTestAuthority(t, cfg, store)
	defer done()

	// Mutating the caller's config after Build must not reach the
	// authority.
	cfg.Routes.SignInPath = "/mutated"
	cfg.Credential.PrivateKey[0] ^= 0xFF

	if got := authority.Routes().SignInPath; got != "/sign-in" {
		t.Fatalf("expected isolated route config, got %q", got)
	}
	if _, _, err := authority.SignIn(context.Background(), "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("expected isolated key material, sign-in failed: %v", err)
	}
}

func TestBuilderRequiresAccountStore(t *testing.T) {
	cfg := testConfig(t)
	_, err := New().WithConfig(cfg).Build()
	if err == nil || !strings.Contains(err.Error(), "account store") {
		t.Fatalf("expected account store requirement, got %v", err)
	}
}

func TestBuilderRequiresRedisForThrottles(t *testing.T) {
	cfg := testConfig(t)
	_, err := New().WithConfig(cfg).WithAccountStore(newMockAccountStore()).Build()
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected redis requirement, got %v", err)
	}

	// With every throttle off, Redis is optional.
	cfg.Security.EnableSignInThrottle = false
	cfg.Security.EnableIPThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	authority, err := New().WithConfig(cfg).WithAccountStore(newMockAccountStore()).Build()
	if err != nil {
		t.Fatalf("expected build without redis to succeed: %v", err)
	}
	authority.Close()
}

func TestBuilderIsSingleUse(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.EnableSignInThrottle = false
	cfg.Security.EnableIPThrottle = false
	cfg.Security.EnableRefreshThrottle = false

	builder := New().WithConfig(cfg).WithAccountStore(newMockAccountStore())
	authority, err := builder.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	authority.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}
}
