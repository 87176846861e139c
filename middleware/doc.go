// Package middleware is the request gate: it enforces the authority’s
// verdict before any protected handler runs. Gate resolves the session
// from the credential cookie and either installs the SessionView in the
// request context or issues the redirect the verdict demands. RequireRole
// aborts with 403 instead of redirecting, matching how content-mutation
// and admin operations report authorization failures.
package middleware
