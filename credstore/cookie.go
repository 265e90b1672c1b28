package credstore

import (
	"net/http"
	"time"
)

const (
	// TokenCookieName is the cookie medium for the bearer token. The edge
	// gatekeeper reads it on every request.
	TokenCookieName = "token"

	// DefaultTokenMaxAge caps the cookie medium at 24 hours. There is no
	// local expiry check beyond it — validity is the identity service's
	// call on revalidation.
	DefaultTokenMaxAge = 24 * time.Hour
)

// CookieOptions defines how the token cookie is issued.
type CookieOptions struct {
	Name     string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// normalize applies the documented defaults. HTTPOnly stays false unless a
// caller opts in: client script must be able to read the token for bearer
// headers on cross-origin API calls.
func (o CookieOptions) normalize() CookieOptions {
	if o.Name == "" {
		o.Name = TokenCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultTokenMaxAge
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// SetTokenCookie issues the token cookie. A nil writer is tolerated: the
// cookie medium is best-effort and the durable store remains authoritative.
func SetTokenCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	if w == nil || token == "" {
		return
	}
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name,
		Value:    token,
		Path:     opts.Path,
		MaxAge:   int(opts.MaxAge.Seconds()),
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ClearTokenCookie expires the token cookie.
func ClearTokenCookie(w http.ResponseWriter, opts CookieOptions) {
	if w == nil {
		return
	}
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     opts.Name,
		Value:    "",
		Path:     opts.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// TokenFromRequest reads the token cookie from an inbound request.
func TokenFromRequest(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	if name == "" {
		name = TokenCookieName
	}
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
