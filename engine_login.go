package farmgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
)

// Login authenticates against the identity service and establishes the
// session in both credential mediums. The from argument carries the
// protected path the user originally asked for; when it is unusable the
// role landing page wins.
//
// A durable-store outage does not fail an otherwise accepted login: the
// cookie medium still gets the token and repair-on-read restores the
// durable copy later.
func (e *Engine) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, email, password, from string) (*LoginResult, error) {
	if e == nil || e.isClosed() {
		return nil, ErrEngineClosed
	}

	grant, err := e.identity.Login(ctx, email, password)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, AuditLoginFailed, false, "", "", "", err, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		e.metricInc(MetricLoginUnavailable)
		e.emitAudit(ctx, AuditLoginFailed, false, "", "", "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	deviceID, ok := credstore.DeviceFromRequest(r)
	if !ok {
		deviceID = credstore.IssueDevice(w, e.config.Cookie.Secure)
	}

	user := grant.User

	e.mu.Lock()
	sess := e.sessionLocked(deviceID)
	sess.generation++
	sess.user = &user
	sess.bootstrapped = true
	e.mu.Unlock()

	if err := e.creds.Write(ctx, w, deviceID, grant.Token, user); err != nil {
		e.logger.Warn("login: durable store write failed", "device", deviceID, "error", err)
		credstore.SetTokenCookie(w, grant.Token, e.creds.CookieOptions())
	}

	redirect := e.sanitizeFrom(from)
	if redirect == "" {
		redirect = e.landingFor(user.Role)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLogin, true, user.ID, deviceID, redirect, nil, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})

	return &LoginResult{
		Token:      grant.Token,
		User:       user,
		RedirectTo: redirect,
	}, nil
}

// landingFor maps a role to its post-login landing page.
func (e *Engine) landingFor(role Role) string {
	if role == RoleAdmin {
		return e.config.Login.AdminLanding
	}
	return e.config.Login.DefaultLanding
}

// sanitizeFrom accepts only same-site absolute paths that are not the
// login page itself. Anything else returns "".
func (e *Engine) sanitizeFrom(from string) string {
	if from == "" {
		return ""
	}
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return ""
	}
	if matchRoute(from, e.config.Login.Route) {
		return ""
	}
	return from
}
