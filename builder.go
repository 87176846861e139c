package draftauth

import (
	"errors"

	"github.com/draftboard/draftauth/credential"
	"github.com/draftboard/draftauth/internal/flows"
	"github.com/draftboard/draftauth/internal/rate"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Authority]. A Builder is single-use: Build returns
// an error on the second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     AccountStore
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the account store handle. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithRedis sets the Redis client backing the sign-in and refresh
// throttles. Required unless every throttle is disabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the sink receiving audit events when auditing is
// enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the resolve latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Authority].
func (b *Builder) Build() (*Authority, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("account store required")
	}

	if b.redis == nil &&
		(cfg.Security.EnableSignInThrottle || cfg.Security.EnableRefreshThrottle) {
		return nil, errors.New("throttling requires redis client")
	}

	cm, err := credential.NewManager(credential.Config{
		TTL:           cfg.Credential.TTL,
		SigningMethod: credential.SigningMethod(cfg.Credential.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Credential.PrivateKey),
		PublicKey:     cloneBytes(cfg.Credential.PublicKey),
		Issuer:        cfg.Credential.Issuer,
		Audience:      cfg.Credential.Audience,
		Leeway:        cfg.Credential.Leeway,
		RequireIAT:    cfg.Credential.RequireIAT,
		MaxFutureIAT:  cfg.Credential.MaxFutureIAT,
		KeyID:         cfg.Credential.KeyID,
		VerifyKeys:    cfg.Credential.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	authority := &Authority{
		config:      cfg,
		store:       b.store,
		credentials: cm,
		policy:      buildRoutePolicy(cfg.Routes),
	}

	authority.limiter = rate.New(b.redis, rate.Config{
		EnableSignInThrottle:  cfg.Security.EnableSignInThrottle,
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		MaxSignInAttempts:     cfg.Security.MaxSignInAttempts,
		SignInCooldown:        cfg.Security.SignInCooldown,
		EnableRefreshThrottle: cfg.Security.EnableRefreshThrottle,
		MaxRefreshAttempts:    cfg.Security.MaxRefreshAttempts,
		RefreshCooldown:       cfg.Security.RefreshCooldown,
	})
	authority.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	authority.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return authority, nil
}

func buildRoutePolicy(routes RouteConfig) flows.RoutePolicy {
	paths := []string{
		routes.SignInPath,
		routes.SignUpPath,
		routes.DeactivatedPath,
		routes.PasswordResetPath,
		routes.RPCPath,
	}
	paths = append(paths, routes.ExtraPublicPaths...)

	var prefixes []string
	if routes.InvitePrefix != "" {
		prefixes = append(prefixes, routes.InvitePrefix)
	}
	prefixes = append(prefixes, routes.StaticPrefixes...)

	return flows.NewRoutePolicy(paths, prefixes, routes.DeactivatedPath, routes.SignOutPath)
}
