package farmgate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
)

// Bootstrap restores the session for the device behind r. A cached
// token+profile pair is trusted immediately and revalidated in the
// background; the revalidation result never logs the user out, it only
// refreshes the profile when the identity service reports a newer one.
//
// A request without a device cookie gets one minted on w. An unreachable
// durable medium degrades to an unauthenticated session instead of
// failing the page load.
func (e *Engine) Bootstrap(ctx context.Context, w http.ResponseWriter, r *http.Request) (SessionState, error) {
	if e == nil {
		return SessionState{}, ErrEngineClosed
	}
	if e.isClosed() {
		return SessionState{}, ErrEngineClosed
	}

	deviceID, ok := credstore.DeviceFromRequest(r)
	if !ok {
		deviceID = credstore.IssueDevice(w, e.config.Cookie.Secure)
	}

	e.mu.Lock()
	sess := e.sessionLocked(deviceID)
	generation := sess.generation
	e.mu.Unlock()

	creds, err := e.creds.Read(ctx, r, deviceID)
	if err != nil {
		// Storage outage: the page still loads, just signed out.
		e.logger.Warn("bootstrap: credential store unavailable", "device", deviceID, "error", err)
		e.metricInc(MetricBootstrapCacheMiss)
		e.finishBootstrap(deviceID, generation, nil)
		return e.State(deviceID), nil
	}

	switch {
	case creds.Token == "":
		e.metricInc(MetricBootstrapCacheMiss)
		e.finishBootstrap(deviceID, generation, nil)

	case creds.Profile != nil:
		e.metricInc(MetricBootstrapCacheHit)
		e.finishBootstrap(deviceID, generation, creds.Profile)
		e.emitAudit(ctx, AuditBootstrap, true, creds.Profile.ID, deviceID, r.URL.Path, nil, nil)
		if !e.config.Revalidate.Disabled {
			e.spawnRevalidation(deviceID, creds.Token, generation)
		}

	default:
		// Token without a cached profile: resolve it before the first
		// snapshot, there is nothing to trust yet.
		e.metricInc(MetricBootstrapCacheMiss)
		profile, resolveErr := e.resolveProfile(ctx, creds.Token)
		if resolveErr != nil {
			var apiErr *identity.APIError
			if errors.As(resolveErr, &apiErr) {
				// The credential itself was rejected.
				if clearErr := e.creds.Clear(ctx, w, deviceID); clearErr != nil {
					e.logger.Warn("bootstrap: clear after rejected token failed", "device", deviceID, "error", clearErr)
				}
			} else {
				e.logger.Warn("bootstrap: profile resolve failed", "device", deviceID, "error", resolveErr)
			}
			e.finishBootstrap(deviceID, generation, nil)
			break
		}
		if writeErr := e.creds.Write(ctx, w, deviceID, creds.Token, *profile); writeErr != nil {
			e.logger.Warn("bootstrap: profile write-back failed", "device", deviceID, "error", writeErr)
		}
		e.finishBootstrap(deviceID, generation, profile)
		e.emitAudit(ctx, AuditBootstrap, true, profile.ID, deviceID, r.URL.Path, nil, nil)
	}

	return e.State(deviceID), nil
}

// finishBootstrap publishes the bootstrap result unless a login or logout
// moved the generation forward in the meantime.
func (e *Engine) finishBootstrap(deviceID string, generation uint64, user *UserProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sessionLocked(deviceID)
	if sess.generation != generation {
		return
	}
	sess.user = user
	sess.bootstrapped = true
}

func (e *Engine) resolveProfile(ctx context.Context, token string) (*UserProfile, error) {
	timeout := e.config.Revalidate.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.identity.Profile(ctx, token)
}

// spawnRevalidation confirms a cached profile against the identity
// service without blocking the caller. Failures are logged and counted
// but never end the session; results for a superseded generation are
// dropped.
func (e *Engine) spawnRevalidation(deviceID, token string, generation uint64) {
	e.reval.Add(1)
	go func() {
		defer e.reval.Done()

		start := time.Now()
		profile, err := e.resolveProfile(context.Background(), token)
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricRevalidateLatency, time.Since(start))
		}

		if err != nil {
			e.metricInc(MetricRevalidateFailure)
			e.logger.Warn("revalidation failed, keeping cached session", "device", deviceID, "error", err)
			e.emitAudit(nil, AuditRevalidateFailed, false, "", deviceID, "", err, nil)
			return
		}

		e.mu.Lock()
		sess := e.sessionLocked(deviceID)
		if sess.generation != generation {
			e.mu.Unlock()
			e.metricInc(MetricRevalidateStaleDrop)
			return
		}
		refreshed := sess.user == nil || !sess.user.Equal(*profile)
		if refreshed {
			sess.user = profile
		}
		e.mu.Unlock()

		if !refreshed {
			e.metricInc(MetricRevalidateSuccess)
			return
		}

		e.metricInc(MetricProfileRefreshed)
		e.emitAudit(nil, AuditProfileRefreshed, true, profile.ID, deviceID, "", nil, nil)

		ctx, cancel := context.WithTimeout(context.Background(), e.config.Revalidate.Timeout)
		defer cancel()
		if err := e.creds.Write(ctx, nil, deviceID, token, *profile); err != nil {
			e.logger.Warn("revalidation: profile write-back failed", "device", deviceID, "error", err)
		}
	}()
}
