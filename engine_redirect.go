package farmgate

import (
	"net/url"
)

// RedirectFor is the client-side routing decision for one navigation. It
// returns the path to redirect to and whether a redirect applies at all.
// While the device's first bootstrap is still running no decision is
// made, so a slow restore never bounces a signed-in user to the login
// page.
//
// Three rules, in order: unauthenticated navigation to a protected path
// goes to the login page with the original path preserved; authenticated
// navigation to the login page goes back to the preserved path or the
// role landing; non-admin navigation under the admin section goes to the
// default landing.
func (e *Engine) RedirectFor(deviceID, path string, query url.Values) (string, bool) {
	if e == nil {
		return "", false
	}

	state := e.State(deviceID)
	if state.IsLoading {
		return "", false
	}

	routes := e.config.Routes
	login := e.config.Login

	if !state.Authenticated() {
		if routes.IsProtected(path) {
			return e.LoginRedirect(path), true
		}
		return "", false
	}

	if routes.IsRedirectIfAuthenticated(path) {
		if from := e.sanitizeFrom(query.Get(login.FromParam)); from != "" {
			return from, true
		}
		return e.landingFor(state.User.Role), true
	}

	if state.User.Role != RoleAdmin && matchRoute(path, login.AdminLanding) {
		return login.DefaultLanding, true
	}

	return "", false
}
