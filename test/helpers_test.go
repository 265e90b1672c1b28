//go:build integration
// +build integration

package test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	farmgate "github.com/farmsight/farmgate"
	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
)

// stubIdentity is an in-memory identity service keyed by email for logins
// and by token for profile lookups.
type stubIdentity struct {
	mu        sync.RWMutex
	grants    map[string]identity.Grant
	passwords map[string]string
	byToken   map[string]identity.Profile
}

func newStubIdentity() *stubIdentity {
	return &stubIdentity{
		grants:    make(map[string]identity.Grant),
		passwords: make(map[string]string),
		byToken:   make(map[string]identity.Profile),
	}
}

func (s *stubIdentity) seed(email, password, token string, profile identity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[email] = identity.Grant{Token: token, User: profile}
	s.passwords[email] = password
	s.byToken[token] = profile
}

func (s *stubIdentity) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
}

func (s *stubIdentity) Login(_ context.Context, email, password string) (*identity.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[email]
	if !ok || s.passwords[email] != password {
		return nil, &identity.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	out := grant
	return &out, nil
}

func (s *stubIdentity) Profile(_ context.Context, token string) (*identity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.byToken[token]
	if !ok {
		return nil, &identity.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid token"}
	}
	out := profile
	return &out, nil
}

type integrationEnv struct {
	engine   *farmgate.Engine
	identity *stubIdentity
	redis    *miniredis.Miniredis
	client   *redis.Client
}

// newIntegrationEnv spins up miniredis, a stub identity service, and an
// engine with audit disabled and metrics enabled.
func newIntegrationEnv(t *testing.T) (*integrationEnv, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	idp := newStubIdentity()
	idp.seed("ada@farmsight.io", "admin123", "TOK-ADMIN", identity.Profile{
		ID:        "u-admin",
		Email:     "ada@farmsight.io",
		FirstName: "Ada",
		LastName:  "Admin",
		Role:      identity.RoleAdmin,
	})
	idp.seed("greta@farmsight.io", "farm123", "TOK-FARMER", identity.Profile{
		ID:           "u-farmer",
		Email:        "greta@farmsight.io",
		FirstName:    "Greta",
		LastName:     "Groenewald",
		Role:         identity.RoleFarmer,
		AssignedFarm: &identity.FarmRef{ID: "farm-7", Name: "Sunnyside"},
	})

	engine, err := farmgate.New().
		WithRedis(rdb).
		WithIdentity(idp).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	env := &integrationEnv{engine: engine, identity: idp, redis: mr, client: rdb}
	cleanup := func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
	return env, cleanup
}

// rebuildEngine constructs a second engine over the same redis, simulating
// a gateway restart that must restore sessions from the durable medium.
func (env *integrationEnv) rebuildEngine(t *testing.T) *farmgate.Engine {
	t.Helper()

	engine, err := farmgate.New().
		WithRedis(env.client).
		WithIdentity(env.identity).
		Build()
	if err != nil {
		t.Fatalf("engine rebuild failed: %v", err)
	}
	return engine
}

// deviceRequest builds a GET request carrying the device cookie and,
// optionally, the token cookie.
func deviceRequest(path, deviceID, token string) *http.Request {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if deviceID != "" {
		req.AddCookie(&http.Cookie{Name: credstore.DeviceCookieName, Value: deviceID})
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: credstore.TokenCookieName, Value: token})
	}
	return req
}

// cookieValue digs a named cookie out of recorded response headers.
func cookieValue(t *testing.T, header http.Header, name string) (string, bool) {
	t.Helper()

	resp := http.Response{Header: header}
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}
