// Package draftauth is the session authority for Draftboard. It derives a
// trusted per-request identity (a [SessionView]) from a long-lived signed
// credential, reconciled against live account state on every request, and
// exposes the authorization predicates ([Authority.Authorize],
// [Authority.RequireRole]) that gate every protected operation.
//
// The package is designed for concurrent server workloads: Authority methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build]. The Authority holds no cross-request mutable state;
// ResolveSession is a pure function of (credential, current account store
// content) per invocation.
//
// # Architecture boundaries
//
// draftauth is the public surface. It exposes [Authority], [Builder],
// [Config], and value types (SessionView, AccountSnapshot, Verdict, etc.).
// All internal coordination (flow orchestration, rate limiting, audit
// dispatch) lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Persist the credential server-side. The credential is client-held;
//     role and deactivation freshness comes from the per-request account
//     lookup, never from stored session rows.
//   - Treat an account-store outage as "authenticated". A failed lookup
//     surfaces as [ErrStoreUnavailable] and the request fails closed.
//   - Expose Redis clients, claim encodings, or flow internals in its
//     public API.
//
// # Performance contract
//
// ResolveSession is the hot path: one credential parse plus exactly one
// account store read per request, no retries, no allocation beyond the
// returned SessionView. Authorize and RequireRole perform no I/O.
package draftauth
