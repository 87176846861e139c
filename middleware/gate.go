package middleware

import (
	"context"
	"errors"
	"net/http"

	draftauth "github.com/draftboard/draftauth"
)

type sessionContextKey struct{}

// SessionFromContext returns the SessionView installed by Gate, if any.
// Handlers behind the gate on public routes may see no session at all.
func SessionFromContext(ctx context.Context) (*draftauth.SessionView, bool) {
	view, ok := ctx.Value(sessionContextKey{}).(*draftauth.SessionView)
	return view, ok
}

// RefreshHeader marks a request as an explicit refresh. When present the
// gate overlays cosmetic fields from the store and rotates the credential.
const RefreshHeader = "X-Session-Refresh"

// Gate resolves the per-request session from the credential cookie and
// enforces the authority's verdict. Allowed requests proceed with the
// session (if any) in the request context; redirect verdicts answer with
// a 303 to the sign-in or deactivated route.
func Gate(authority *draftauth.Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authority == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw := credentialFromRequest(r, authority.CookieName())
			kind := draftauth.RequestNormal
			if r.Header.Get(RefreshHeader) != "" {
				kind = draftauth.RequestExplicitRefresh
			}

			view, superseded, err := authority.ResolveSession(r.Context(), raw, kind)
			if err != nil {
				if errors.Is(err, draftauth.ErrStoreUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				if errors.Is(err, draftauth.ErrRefreshRateLimited) {
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
				// All remaining failures resolve to no session. The verdict
				// below decides whether that matters on this path.
				view = nil
			}

			if superseded != "" {
				SetCredentialCookie(w, authority, superseded)
			}

			switch authority.Authorize(r.Context(), view, r.URL.Path) {
			case draftauth.VerdictRedirectSignIn:
				http.Redirect(w, r, authority.Routes().SignInPath, http.StatusSeeOther)
				return
			case draftauth.VerdictRedirectDeactivated:
				http.Redirect(w, r, authority.Routes().DeactivatedPath, http.StatusSeeOther)
				return
			}

			if view != nil {
				ctx := context.WithValue(r.Context(), sessionContextKey{}, view)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole aborts with 403 when the session's role is below min, and
// 401 when there is no session at all. It never redirects; mutation and
// RPC endpoints report authorization failures as errors.
func RequireRole(authority *draftauth.Authority, min draftauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			view, _ := SessionFromContext(r.Context())
			if err := authority.RequireRole(view, min); err != nil {
				if errors.Is(err, draftauth.ErrUnauthenticated) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetCredentialCookie writes the session credential using the authority's
// cookie settings. MaxAge tracks the credential TTL so the browser drops
// the cookie about when the credential expires.
func SetCredentialCookie(w http.ResponseWriter, authority *draftauth.Authority, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authority.CookieName(),
		Value:    raw,
		Path:     "/",
		MaxAge:   int(authority.CredentialTTL().Seconds()),
		HttpOnly: true,
		Secure:   authority.CookieSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCredentialCookie expires the credential cookie. Sign-out is purely
// client-side: the server holds no session state to revoke.
func ClearCredentialCookie(w http.ResponseWriter, authority *draftauth.Authority) {
	http.SetCookie(w, &http.Cookie{
		Name:     authority.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   authority.CookieSecure(),
		SameSite: http.SameSiteLaxMode,
	})
}

func credentialFromRequest(r *http.Request, cookieName string) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
