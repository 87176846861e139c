package draftauth

import (
	"errors"
	"strings"
	"time"
)

// Config groups every tunable of the session authority. Zero values are
// not usable directly; start from [DefaultConfig] and override.
type Config struct {
	Credential CredentialConfig
	Routes     RouteConfig
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig controls issuance and verification of the signed
// credential held by the client.
type CredentialConfig struct {
	// TTL is the credential validity window. The credential is long-lived;
	// role/deactivation freshness comes from the per-request account
	// lookup, not from a short TTL.
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// CookieName is the cookie the gate reads the credential from and
	// writes superseding credentials to.
	CookieName   string
	CookieSecure bool
}

/*
====================================
ROUTE CONFIG
====================================
*/

// RouteConfig enumerates the public allow-list and the redirect targets.
// Public routes are an explicit list, never inferred.
type RouteConfig struct {
	SignInPath      string
	SignUpPath      string
	SignOutPath     string
	DeactivatedPath string

	// PasswordResetPath is public so a locked-out user can start recovery;
	// the reset flow itself lives outside this package.
	PasswordResetPath string

	// RPCPath is the typed RPC transport endpoint. It is ungated here
	// because each RPC operation enforces its own checks via RequireRole.
	RPCPath string

	// InvitePrefix matches invite-acceptance URLs, which carry a token
	// path segment ("/invite/<token>").
	InvitePrefix string

	// StaticPrefixes are asset prefixes served without a session.
	StaticPrefixes []string

	// ExtraPublicPaths extends the allow-list with exact paths.
	ExtraPublicPaths []string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls the Redis-backed throttles.
type SecurityConfig struct {
	EnableSignInThrottle bool
	EnableIPThrottle     bool
	MaxSignInAttempts    int
	SignInCooldown       time.Duration

	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Credential: CredentialConfig{
			TTL:           30 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
			CookieName:    "draftboard_session",
			CookieSecure:  true,
		},
		Routes: RouteConfig{
			SignInPath:        "/sign-in",
			SignUpPath:        "/sign-up",
			SignOutPath:       "/sign-out",
			DeactivatedPath:   "/deactivated",
			PasswordResetPath: "/password-reset",
			RPCPath:           "/rpc",
			InvitePrefix:      "/invite/",
			StaticPrefixes:    []string{"/static/", "/assets/"},
		},
		Security: SecurityConfig{
			EnableSignInThrottle:  true,
			EnableIPThrottle:      true,
			MaxSignInAttempts:     5,
			SignInCooldown:        15 * time.Minute,
			EnableRefreshThrottle: true,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Credential.PrivateKey = cloneBytes(cfg.Credential.PrivateKey)
	out.Credential.PublicKey = cloneBytes(cfg.Credential.PublicKey)
	if len(cfg.Credential.VerifyKeys) > 0 {
		keys := make(map[string][]byte, len(cfg.Credential.VerifyKeys))
		for kid, key := range cfg.Credential.VerifyKeys {
			keys[kid] = cloneBytes(key)
		}
		out.Credential.VerifyKeys = keys
	}
	out.Routes.StaticPrefixes = append([]string(nil), cfg.Routes.StaticPrefixes...)
	out.Routes.ExtraPublicPaths = append([]string(nil), cfg.Routes.ExtraPublicPaths...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. Builder.Build calls it; callers
// constructing configs programmatically may call it early for better
// error locality.
func (c *Config) Validate() error {
	// Credential
	if c.Credential.TTL <= 0 {
		return errors.New("Credential TTL must be > 0")
	}
	if c.Credential.SigningMethod != "ed25519" && c.Credential.SigningMethod != "hs256" {
		return errors.New("unsupported credential signing method")
	}
	if c.Credential.SigningMethod == "ed25519" && len(c.Credential.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Credential.SigningMethod == "ed25519" &&
		len(c.Credential.PublicKey) == 0 && len(c.Credential.VerifyKeys) == 0 {
		return errors.New("ed25519 requires PublicKey or VerifyKeys")
	}
	if c.Credential.SigningMethod == "hs256" && len(c.Credential.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.Credential.Leeway < 0 || c.Credential.Leeway > 2*time.Minute {
		return errors.New("Credential Leeway must be within [0, 2m]")
	}
	if strings.TrimSpace(c.Credential.CookieName) == "" {
		return errors.New("Credential CookieName must be set")
	}

	// Routes
	for name, p := range map[string]string{
		"SignInPath":        c.Routes.SignInPath,
		"SignUpPath":        c.Routes.SignUpPath,
		"SignOutPath":       c.Routes.SignOutPath,
		"DeactivatedPath":   c.Routes.DeactivatedPath,
		"PasswordResetPath": c.Routes.PasswordResetPath,
		"RPCPath":           c.Routes.RPCPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Routes " + name + " must start with '/'")
		}
	}
	if c.Routes.InvitePrefix != "" && !strings.HasPrefix(c.Routes.InvitePrefix, "/") {
		return errors.New("Routes InvitePrefix must start with '/'")
	}
	for _, p := range c.Routes.StaticPrefixes {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Routes StaticPrefixes entries must start with '/'")
		}
	}
	for _, p := range c.Routes.ExtraPublicPaths {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Routes ExtraPublicPaths entries must start with '/'")
		}
	}

	// Security
	if c.Security.EnableSignInThrottle {
		if c.Security.MaxSignInAttempts <= 0 {
			return errors.New("Security MaxSignInAttempts must be > 0")
		}
		if c.Security.SignInCooldown <= 0 {
			return errors.New("Security SignInCooldown must be > 0")
		}
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0")
		}
		if c.Security.RefreshCooldown <= 0 {
			return errors.New("Security RefreshCooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
