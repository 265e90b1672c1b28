package test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	farmgate "github.com/farmsight/farmgate"
	"github.com/farmsight/farmgate/gatekeeper"
	"github.com/farmsight/farmgate/relay"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = farmgate.New

	var _ *farmgate.Engine
	var _ farmgate.Config
	var _ farmgate.SessionState
	var _ farmgate.LoginResult
	var _ farmgate.UserProfile
	var _ farmgate.EdgeDecision
	var _ farmgate.AuditSink
	var _ farmgate.MetricsSnapshot

	var _ error = farmgate.ErrInvalidCredentials
	var _ error = farmgate.ErrIdentityUnavailable
	var _ error = farmgate.ErrEngineClosed

	var _ func(*farmgate.Engine) func(http.Handler) http.Handler = gatekeeper.Guard
	var _ func(bool) func(http.Handler) http.Handler = gatekeeper.EnsureDevice
	var _ func(*farmgate.Engine) http.Handler = relay.Handler

	var _ func(*farmgate.Engine, context.Context, http.ResponseWriter, *http.Request, string, string, string) (*farmgate.LoginResult, error) = (*farmgate.Engine).Login
	var _ func(*farmgate.Engine, context.Context, http.ResponseWriter, *http.Request) (farmgate.SessionState, error) = (*farmgate.Engine).Bootstrap
	var _ func(*farmgate.Engine, context.Context, http.ResponseWriter, *http.Request) (string, error) = (*farmgate.Engine).Logout
	var _ func(*farmgate.Engine, string, string, url.Values) (string, bool) = (*farmgate.Engine).RedirectFor
	var _ func(*farmgate.Engine, string) farmgate.SessionState = (*farmgate.Engine).State
}
