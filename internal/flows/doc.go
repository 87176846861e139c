// Package flows contains the pure orchestration logic behind the public
// Authority methods. Each flow is a free function over a deps struct of
// primitive types and callbacks, so flows never import the root draftauth
// package (no import cycles) and are trivially testable in isolation.
//
// Flows perform no audit or metric emission; the root package maps flow
// results to sentinel errors, counters, and audit events.
package flows
