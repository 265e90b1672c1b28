package farmgate

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func collectEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case event := <-sink.Events():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func newAuditedEngine(t *testing.T) (*testEnv, *ChannelSink) {
	t.Helper()
	sink := NewChannelSink(64)
	env := newTestEngineWithSink(t, func(c *Config) {
		c.Audit.Enabled = true
	}, sink)
	return env, sink
}

func TestAuditLoginEvent(t *testing.T) {
	env, sink := newAuditedEngine(t)

	if _, err := env.engine.Login(context.Background(), httptest.NewRecorder(), deviceRequest("/login", "dev-1", ""), "admin@farmsight.test", "admin123", ""); err != nil {
		t.Fatalf("login: %v", err)
	}

	event := collectEvent(t, sink)
	if event.EventType != AuditLogin {
		t.Fatalf("event type = %q", event.EventType)
	}
	if !event.Success || event.UserID != "u-admin" || event.DeviceID != "dev-1" {
		t.Fatalf("event = %+v", event)
	}
	if event.Metadata["role"] != "admin" {
		t.Fatalf("metadata = %v", event.Metadata)
	}
}

func TestAuditLoginFailedEvent(t *testing.T) {
	env, sink := newAuditedEngine(t)

	if _, err := env.engine.Login(context.Background(), httptest.NewRecorder(), deviceRequest("/login", "dev-1", ""), "admin@farmsight.test", "wrong", ""); err == nil {
		t.Fatal("expected login failure")
	}

	event := collectEvent(t, sink)
	if event.EventType != AuditLoginFailed || event.Success {
		t.Fatalf("event = %+v", event)
	}
	if event.Error == "" {
		t.Fatal("failed login event must carry the error")
	}
}

func TestAuditLogoutEvent(t *testing.T) {
	env, sink := newAuditedEngine(t)
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, httptest.NewRecorder(), deviceRequest("/login", "dev-1", ""), "farmer@farmsight.test", "farm123", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	collectEvent(t, sink) // login event

	if _, err := env.engine.Logout(ctx, httptest.NewRecorder(), deviceRequest("/overview", "dev-1", "")); err != nil {
		t.Fatalf("logout: %v", err)
	}

	event := collectEvent(t, sink)
	if event.EventType != AuditLogout || event.UserID != "u-farmer" {
		t.Fatalf("event = %+v", event)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	env := newTestEngine(t, nil)

	if _, err := env.engine.Login(context.Background(), httptest.NewRecorder(), deviceRequest("/login", "dev-1", ""), "admin@farmsight.test", "admin123", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := env.engine.AuditDropped(); got != 0 {
		t.Fatalf("dropped = %d", got)
	}
}
