package farmgate

import (
	"context"
	"net/http"

	"github.com/farmsight/farmgate/credstore"
)

// Logout ends the session for the device behind r and returns the path
// the client should navigate to. Logging out an already-signed-out device
// is a no-op with the same result.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	if e == nil || e.isClosed() {
		return "", ErrEngineClosed
	}

	deviceID, ok := credstore.DeviceFromRequest(r)
	if !ok {
		// No device, nothing stored; still expire whatever cookie is there.
		credstore.ClearTokenCookie(w, e.creds.CookieOptions())
		return e.config.Login.Route, nil
	}

	var userID string
	e.mu.Lock()
	sess := e.sessionLocked(deviceID)
	if sess.user != nil {
		userID = sess.user.ID
	}
	sess.generation++
	sess.user = nil
	sess.bootstrapped = true
	e.mu.Unlock()

	if err := e.creds.Clear(ctx, w, deviceID); err != nil {
		// The in-memory session is already gone; the durable copy expires
		// on its TTL.
		e.logger.Warn("logout: durable store clear failed", "device", deviceID, "error", err)
		credstore.ClearTokenCookie(w, e.creds.CookieOptions())
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, true, userID, deviceID, "", nil, nil)

	return e.config.Login.Route, nil
}
