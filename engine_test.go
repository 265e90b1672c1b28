package farmgate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
)

// stubIdentity is an in-memory identity.API double. Tokens map to
// profiles; logins map email/password pairs to grants.
type stubIdentity struct {
	mu           sync.Mutex
	logins       map[string]identity.Grant
	passwords    map[string]string
	profiles     map[string]identity.Profile
	loginErr     error
	profileErr   error
	profileCalls int
	gate         chan struct{}
}

func newStubIdentity() *stubIdentity {
	return &stubIdentity{
		logins:    make(map[string]identity.Grant),
		passwords: make(map[string]string),
		profiles:  make(map[string]identity.Profile),
	}
}

func (s *stubIdentity) addUser(email, password, token string, profile identity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins[email] = identity.Grant{Token: token, User: profile}
	s.passwords[email] = password
	s.profiles[token] = profile
}

func (s *stubIdentity) setProfile(token string, profile identity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[token] = profile
}

func (s *stubIdentity) setProfileErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileErr = err
}

func (s *stubIdentity) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileCalls
}

func (s *stubIdentity) Login(ctx context.Context, email, password string) (*identity.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	grant, ok := s.logins[email]
	if !ok || s.passwords[email] != password {
		return nil, &identity.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid email or password"}
	}
	g := grant
	return &g, nil
}

// holdProfiles makes Profile block until the returned function is called.
func (s *stubIdentity) holdProfiles() func() {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	return func() { close(gate) }
}

func (s *stubIdentity) Profile(ctx context.Context, token string) (*identity.Profile, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileCalls++
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	profile, ok := s.profiles[token]
	if !ok {
		return nil, &identity.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid token"}
	}
	p := profile
	return &p, nil
}

func adminProfile() identity.Profile {
	return identity.Profile{
		ID:        "u-admin",
		Email:     "admin@farmsight.test",
		FirstName: "Ada",
		LastName:  "Berg",
		Role:      identity.RoleAdmin,
	}
}

func farmerProfile() identity.Profile {
	return identity.Profile{
		ID:        "u-farmer",
		Email:     "farmer@farmsight.test",
		FirstName: "Greta",
		LastName:  "Holm",
		Role:      identity.RoleFarmer,
		AssignedFarm: &identity.FarmRef{
			ID:   "f-1",
			Name: "North Barn",
		},
	}
}

type testEnv struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	identity *stubIdentity
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	return newTestEngineWithSink(t, mutate, nil)
}

func newTestEngineWithSink(t *testing.T, mutate func(*Config), sink AuditSink) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	api := newStubIdentity()
	api.addUser("admin@farmsight.test", "admin123", "TOK-ADMIN", adminProfile())
	api.addUser("farmer@farmsight.test", "farm123", "TOK-FARMER", farmerProfile())

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentity(api).
		WithAuditSink(sink).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEnv{engine: engine, redis: mr, identity: api}
}

func deviceRequest(path, deviceID, token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if deviceID != "" {
		r.AddCookie(&http.Cookie{Name: credstore.DeviceCookieName, Value: deviceID})
	}
	if token != "" {
		r.AddCookie(&http.Cookie{Name: credstore.TokenCookieName, Value: token})
	}
	return r
}
