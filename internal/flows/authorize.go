package flows

import "strings"

// Authorization verdicts, passed as ints so flows stay decoupled from the
// root package enum.
const (
	VerdictAllow = iota
	VerdictRedirectSignIn
	VerdictRedirectDeactivated
)

// RoutePolicy is the explicit public allow-list plus the two routes the
// deactivation redirect must never trap (loop avoidance).
type RoutePolicy struct {
	PublicPaths     map[string]struct{}
	PublicPrefixes  []string
	DeactivatedPath string
	SignOutPath     string
}

// NewRoutePolicy builds a RoutePolicy from exact paths and prefixes.
func NewRoutePolicy(paths []string, prefixes []string, deactivatedPath, signOutPath string) RoutePolicy {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	return RoutePolicy{
		PublicPaths:     set,
		PublicPrefixes:  prefixes,
		DeactivatedPath: deactivatedPath,
		SignOutPath:     signOutPath,
	}
}

// Public reports whether path is on the allow-list.
func (p RoutePolicy) Public(path string) bool {
	if _, ok := p.PublicPaths[path]; ok {
		return true
	}
	for _, prefix := range p.PublicPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RunAuthorize decides the verdict for a request:
//
//   - unauthenticated: allow public routes, otherwise redirect to sign-in
//   - deactivated: redirect to the deactivated notice regardless of role,
//     except on the deactivated and sign-out routes themselves
//   - otherwise: allow
func RunAuthorize(authenticated, deactivated bool, path string, policy RoutePolicy) int {
	if !authenticated {
		if policy.Public(path) {
			return VerdictAllow
		}
		return VerdictRedirectSignIn
	}

	if deactivated {
		if path == policy.DeactivatedPath || path == policy.SignOutPath {
			return VerdictAllow
		}
		return VerdictRedirectDeactivated
	}

	return VerdictAllow
}
