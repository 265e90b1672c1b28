package gatekeeper

import (
	"net/http"
	"strings"

	farmgate "github.com/farmsight/farmgate"
	"github.com/farmsight/farmgate/credstore"
)

// Guard returns the edge middleware. Route classes are checked in order:
// realtime and public paths pass untouched, protected paths require a
// credential in either medium (token cookie or bearer Authorization
// header), the login page always passes, and anything unmatched passes
// by default.
//
// Protected requests that carry a cookie token but no Authorization
// header get "Bearer <token>" injected before the request moves on.
func Guard(engine *farmgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			routes := engine.Routes()
			path := r.URL.Path

			switch {
			case routes.IsRealtime(path), routes.IsPublic(path):
				engine.ObserveEdge(farmgate.EdgePublicPass, path)
				next.ServeHTTP(w, r)

			case routes.IsProtected(path):
				token, hasCookie := credstore.TokenFromRequest(r, engine.CookieOptions().Name)
				if !hasCookie && !hasBearer(r) {
					engine.ObserveEdge(farmgate.EdgeProtectedDenied, path)
					http.Redirect(w, r, engine.LoginRedirect(path), http.StatusFound)
					return
				}
				if hasCookie && r.Header.Get("Authorization") == "" {
					r.Header.Set("Authorization", "Bearer "+token)
				}
				engine.ObserveEdge(farmgate.EdgeProtectedAllowed, path)
				next.ServeHTTP(w, r)

			case routes.IsRedirectIfAuthenticated(path):
				// Pass through even with a credential present: only the
				// session layer knows whether the user is really signed in.
				engine.ObserveEdge(farmgate.EdgeRedirectIfAuthPass, path)
				next.ServeHTTP(w, r)

			default:
				engine.ObserveEdge(farmgate.EdgeDefaultPass, path)
				next.ServeHTTP(w, r)
			}
		})
	}
}

// hasBearer reports whether the request already carries a bearer
// credential in its Authorization header. Presence only; validity is the
// identity service's call.
func hasBearer(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// EnsureDevice mints a device identity for requests that lack one. The
// cookie is set on the response and mirrored onto the request so
// downstream handlers key the same device within this request.
func EnsureDevice(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := credstore.DeviceFromRequest(r); !ok {
				id := credstore.IssueDevice(w, secure)
				r.AddCookie(&http.Cookie{Name: credstore.DeviceCookieName, Value: id})
			}
			next.ServeHTTP(w, r)
		})
	}
}
