package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	draftauth "github.com/draftboard/draftauth"
	"github.com/draftboard/draftauth/account"
	"github.com/draftboard/draftauth/credential"
	"github.com/draftboard/draftauth/password"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type accountState struct {
	accountID  string
	credential string
}

func main() {
	var (
		accounts    = flag.Int("accounts", 50000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (resolve + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "da", "account key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen failed: %v\n", err)
		os.Exit(1)
	}

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "argon2 init failed: %v\n", err)
		os.Exit(1)
	}

	store, err := account.NewRedisStore(client, *prefix, hasher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "account store init failed: %v\n", err)
		os.Exit(1)
	}

	cfg := draftauth.DefaultConfig()
	cfg.Credential.PrivateKey = priv
	cfg.Credential.PublicKey = pub
	// Throttles off: this measures the resolve pipeline, not the limiter.
	cfg.Security.EnableSignInThrottle = false
	cfg.Security.EnableIPThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	cfg.Metrics.Enabled = true

	authority, err := draftauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(store).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "authority build failed: %v\n", err)
		os.Exit(1)
	}
	defer authority.Close()

	// Credentials are minted directly so seeding cost is one signature per
	// account instead of one argon2 verification per account.
	issuer, err := credential.NewManager(credential.Config{
		TTL:           cfg.Credential.TTL,
		SigningMethod: credential.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "credential manager init failed: %v\n", err)
		os.Exit(1)
	}

	// One hash shared across all seeded accounts; hashing is deliberately
	// expensive and irrelevant to the phases below.
	seedHash, err := hasher.Hash("loadtest-password")
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}

	states := make([]accountState, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := 0; i < *accounts; i++ {
		id := fmt.Sprintf("acct-%d", i)
		record := account.Record{
			AccountID:    id,
			Identifier:   fmt.Sprintf("user-%d@example.com", i),
			PasswordHash: seedHash,
			Role:         draftauth.RoleMember,
			DisplayName:  fmt.Sprintf("User %d", i),
		}
		if err := store.Put(ctx, record); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		raw, err := issuer.Issue(credential.Profile{
			AccountID:   id,
			Role:        draftauth.RoleMember.String(),
			DisplayName: record.DisplayName,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = accountState{accountID: id, credential: raw}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	resolveStats := runPhase(ctx, states, *ops, *concurrency, func(ctx context.Context, s *accountState) error {
		_, _, err := authority.ResolveSession(ctx, s.credential, draftauth.RequestNormal)
		return err
	})
	refreshStats := runPhase(ctx, states, *ops, *concurrency, func(ctx context.Context, s *accountState) error {
		// The seeded credential stays valid, so there is no need to swap in
		// the superseding one between iterations.
		_, _, err := authority.ResolveSession(ctx, s.credential, draftauth.RequestExplicitRefresh)
		return err
	})

	fmt.Println("---- results ----")
	printStats("resolve", resolveStats)
	printStats("refresh", refreshStats)

	snap := authority.MetricsSnapshot()
	fmt.Printf("resolve_success=%d refreshed=%d\n",
		snap.Counters[draftauth.MetricResolveSuccess],
		snap.Counters[draftauth.MetricCredentialRefreshed],
	)
}

func runPhase(ctx context.Context, states []accountState, ops, concurrency int, op func(context.Context, *accountState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				state := &states[idx]

				t0 := time.Now()
				err := op(ctx, state)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
