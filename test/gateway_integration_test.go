//go:build integration
// +build integration

package test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	farmgate "github.com/farmsight/farmgate"
	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/gatekeeper"
	"github.com/farmsight/farmgate/relay"
)

func TestGatewayLoginBootstrapRestartLogout(t *testing.T) {
	ctx := context.Background()
	env, cleanup := newIntegrationEnv(t)
	defer cleanup()

	// Login mints a device and establishes both mediums.
	rec := httptest.NewRecorder()
	req := deviceRequest("/login", "", "")
	result, err := env.engine.Login(ctx, rec, req, "greta@farmsight.io", "farm123", "/details/herd-12")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.RedirectTo != "/details/herd-12" {
		t.Fatalf("expected preserved from path, got %q", result.RedirectTo)
	}

	deviceID, ok := cookieValue(t, rec.Header(), credstore.DeviceCookieName)
	if !ok {
		t.Fatal("expected device cookie on login response")
	}
	token, ok := cookieValue(t, rec.Header(), credstore.TokenCookieName)
	if !ok || token != "TOK-FARMER" {
		t.Fatalf("expected token cookie TOK-FARMER, got %q (present=%v)", token, ok)
	}

	// A second engine over the same redis restores the session without
	// re-entering credentials.
	restarted := env.rebuildEngine(t)
	defer restarted.Close()

	rec2 := httptest.NewRecorder()
	state, err := restarted.Bootstrap(ctx, rec2, deviceRequest("/overview", deviceID, token))
	if err != nil {
		t.Fatalf("Bootstrap after restart failed: %v", err)
	}
	if !state.Authenticated() {
		t.Fatal("expected authenticated session after restart")
	}
	if state.User.Email != "greta@farmsight.io" {
		t.Fatalf("unexpected restored user %q", state.User.Email)
	}
	restarted.WaitRevalidation()

	// Logout ends the session everywhere.
	rec3 := httptest.NewRecorder()
	redirect, err := env.engine.Logout(ctx, rec3, deviceRequest("/overview", deviceID, token))
	if err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if redirect != "/login" {
		t.Fatalf("expected /login redirect, got %q", redirect)
	}

	creds, err := env.engine.Store().Read(ctx, deviceRequest("/overview", deviceID, ""), deviceID)
	if err != nil {
		t.Fatalf("Read after logout failed: %v", err)
	}
	if creds.Token != "" || creds.Profile != nil {
		t.Fatalf("expected empty durable entry after logout, got %+v", creds)
	}
}

func TestGatewayGuardAndRelayMounted(t *testing.T) {
	ctx := context.Background()
	env, cleanup := newIntegrationEnv(t)
	defer cleanup()

	r := chi.NewRouter()
	r.Use(gatekeeper.EnsureDevice(false))
	r.Use(gatekeeper.Guard(env.engine))
	r.Mount(env.engine.Relay().BasePath, relay.Handler(env.engine))
	r.Get("/overview", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("Authorization")))
	})

	// Protected navigation without a token bounces to the login page.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, deviceRequest("/overview", "", ""))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?from=%2Foverview" {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	// Establish a session, then the same navigation passes with the bearer
	// header injected.
	loginRec := httptest.NewRecorder()
	if _, err := env.engine.Login(ctx, loginRec, deviceRequest("/login", "", ""), "ada@farmsight.io", "admin123", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	deviceID, _ := cookieValue(t, loginRec.Header(), credstore.DeviceCookieName)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, deviceRequest("/overview", deviceID, "TOK-ADMIN"))
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
	if got := rec2.Body.String(); got != "Bearer TOK-ADMIN" {
		t.Fatalf("expected injected bearer header, got %q", got)
	}

	// The relay validates the cookie token against the identity service.
	rec3 := httptest.NewRecorder()
	validateReq, _ := http.NewRequest(http.MethodPost, "/api/auth/validate", strings.NewReader("{}"))
	validateReq.AddCookie(&http.Cookie{Name: credstore.DeviceCookieName, Value: deviceID})
	validateReq.AddCookie(&http.Cookie{Name: credstore.TokenCookieName, Value: "TOK-ADMIN"})
	r.ServeHTTP(rec3, validateReq)
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected 200 from validate, got %d: %s", rec3.Code, rec3.Body.String())
	}
	if !strings.Contains(rec3.Body.String(), `"u-admin"`) {
		t.Fatalf("expected admin profile in validate response, got %s", rec3.Body.String())
	}
}

func TestGatewayRevokedTokenKeepsSessionUntilLogout(t *testing.T) {
	ctx := context.Background()
	env, cleanup := newIntegrationEnv(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	if _, err := env.engine.Login(ctx, rec, deviceRequest("/login", "", ""), "greta@farmsight.io", "farm123", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	deviceID, _ := cookieValue(t, rec.Header(), credstore.DeviceCookieName)

	// The identity service stops honoring the token; a page load still
	// trusts the cached pair and stays signed in.
	env.identity.revoke("TOK-FARMER")

	rec2 := httptest.NewRecorder()
	state, err := env.engine.Bootstrap(ctx, rec2, deviceRequest("/overview", deviceID, "TOK-FARMER"))
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if !state.Authenticated() {
		t.Fatal("expected cached session to survive identity rejection")
	}
	env.engine.WaitRevalidation()

	after := env.engine.State(deviceID)
	if !after.Authenticated() {
		t.Fatal("failed revalidation must not log the user out")
	}

	snapshot := env.engine.MetricsSnapshot()
	if snapshot.Counters[farmgate.MetricRevalidateFailure] == 0 {
		t.Fatal("expected a revalidation failure to be counted")
	}
}

func TestGatewayAdminFenceAfterRestore(t *testing.T) {
	ctx := context.Background()
	env, cleanup := newIntegrationEnv(t)
	defer cleanup()

	rec := httptest.NewRecorder()
	if _, err := env.engine.Login(ctx, rec, deviceRequest("/login", "", ""), "greta@farmsight.io", "farm123", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	deviceID, _ := cookieValue(t, rec.Header(), credstore.DeviceCookieName)

	if target, ok := env.engine.RedirectFor(deviceID, "/admin/livestock", url.Values{}); !ok || target != "/overview" {
		t.Fatalf("expected farmer fenced to /overview, got %q (ok=%v)", target, ok)
	}
	if _, ok := env.engine.RedirectFor(deviceID, "/overview", url.Values{}); ok {
		t.Fatal("expected no redirect for farmer on /overview")
	}
}
