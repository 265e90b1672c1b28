package credstore

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// DeviceCookieName carries the opaque device identifier that keys the
	// durable medium. HttpOnly: client script never needs it.
	DeviceCookieName = "fg_device"

	// DeviceMaxAge keeps a device identity for a year of inactivity.
	DeviceMaxAge = 365 * 24 * time.Hour
)

// DeviceFromRequest extracts the device identifier from an inbound request.
func DeviceFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(DeviceCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// IssueDevice mints a fresh device identifier and, when a writer is
// available, pins it on the response.
func IssueDevice(w http.ResponseWriter, secure bool) string {
	id := uuid.NewString()
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     DeviceCookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(DeviceMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return id
}
