package farmgate

import (
	"log/slog"
	"net/url"
	"sync"

	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
	internalaudit "github.com/farmsight/farmgate/internal/audit"
)

// Engine is the session gateway core. It owns the per-device session
// snapshots, the dual-medium credential store, and the identity client,
// and feeds the audit and metrics subsystems. Configure it through
// [Builder]; instances are immutable after Build apart from the session
// table.
type Engine struct {
	config   Config
	creds    *credstore.Store
	identity identity.API
	logger   *slog.Logger
	audit    *internalaudit.Dispatcher
	metrics  *Metrics

	mu       sync.Mutex
	sessions map[string]*deviceSession
	closed   bool

	reval sync.WaitGroup
}

// deviceSession is the in-memory session slot for one device. generation
// is bumped on every login and logout; background revalidation results
// carrying an older generation are discarded.
type deviceSession struct {
	user         *UserProfile
	bootstrapped bool
	generation   uint64
}

// State returns the current session snapshot for a device. An unknown
// device reads as a not-yet-bootstrapped session.
func (e *Engine) State(deviceID string) SessionState {
	if e == nil || deviceID == "" {
		return SessionState{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions[deviceID]
	if !ok {
		return SessionState{}
	}
	if !sess.bootstrapped {
		return SessionState{IsLoading: true}
	}
	if sess.user == nil {
		return SessionState{}
	}
	copied := *sess.user
	return SessionState{User: &copied}
}

// WaitRevalidation blocks until every in-flight background revalidation
// has finished. Intended for tests and shutdown.
func (e *Engine) WaitRevalidation() {
	if e == nil {
		return
	}
	e.reval.Wait()
}

// Close drains in-flight revalidations and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.reval.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current metric values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Routes exposes the route classification tables.
func (e *Engine) Routes() RoutesConfig {
	return e.config.Routes
}

// LoginRoute exposes the login page path.
func (e *Engine) LoginRoute() string {
	return e.config.Login.Route
}

// LoginRedirect builds the login-page URL that preserves the originally
// requested path in the from parameter.
func (e *Engine) LoginRedirect(path string) string {
	return e.config.Login.Route + "?" + e.config.Login.FromParam + "=" + url.QueryEscape(path)
}

// Relay exposes the relay endpoint configuration.
func (e *Engine) Relay() RelayConfig {
	return RelayConfig{
		BasePath:       e.config.Relay.BasePath,
		AllowedOrigins: cloneStrings(e.config.Relay.AllowedOrigins),
	}
}

// CookieOptions exposes the normalized token cookie policy.
func (e *Engine) CookieOptions() credstore.CookieOptions {
	return e.creds.CookieOptions()
}

// Store exposes the credential store for the relay endpoints.
func (e *Engine) Store() *credstore.Store {
	return e.creds
}

// Identity exposes the identity client for the relay endpoints.
func (e *Engine) Identity() identity.API {
	return e.identity
}

// Logger exposes the engine's structured logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// ObserveEdge records one edge gatekeeper decision.
func (e *Engine) ObserveEdge(d EdgeDecision, path string) {
	switch d {
	case EdgePublicPass:
		e.metricInc(MetricEdgePublic)
	case EdgeProtectedAllowed:
		e.metricInc(MetricEdgeAllowed)
	case EdgeProtectedDenied:
		e.metricInc(MetricEdgeDenied)
		e.emitAudit(nil, AuditEdgeDenied, false, "", "", path, nil, nil)
	case EdgeRedirectIfAuthPass:
		e.metricInc(MetricEdgeRedirectIfAuth)
	default:
		e.metricInc(MetricEdgeDefault)
	}
}

// ObserveRelay records one relay endpoint outcome.
func (e *Engine) ObserveRelay(op RelayOp, ok bool) {
	switch op {
	case RelayCookie:
		if ok {
			e.metricInc(MetricRelayCookieSet)
		} else {
			e.metricInc(MetricRelayCookieRejected)
		}
	case RelayToken:
		if ok {
			e.metricInc(MetricRelayTokenServed)
		} else {
			e.metricInc(MetricRelayTokenMissing)
		}
	case RelayValidate:
		if ok {
			e.metricInc(MetricRelayValidateSuccess)
		} else {
			e.metricInc(MetricRelayValidateFailure)
		}
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// session returns the slot for a device, creating it when absent.
// Callers must hold e.mu.
func (e *Engine) sessionLocked(deviceID string) *deviceSession {
	sess, ok := e.sessions[deviceID]
	if !ok {
		sess = &deviceSession{}
		e.sessions[deviceID] = sess
	}
	return sess
}
