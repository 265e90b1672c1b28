package farmgate

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config is the full configuration of the session gateway. Zero values are
// filled from [DefaultConfig]; instances are treated as immutable after
// [Builder.Build].
type Config struct {
	Cookie     CookieConfig
	Store      StoreConfig
	Routes     RoutesConfig
	Login      LoginConfig
	Revalidate RevalidateConfig
	Relay      RelayConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig defines the token cookie medium. The defaults are a product
// decision, not an oversight: the cookie must stay readable by client
// script (HTTPOnly=false) and work on plain-HTTP development setups
// (Secure=false).
type CookieConfig struct {
	Name     string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig controls the durable credential medium.
type StoreConfig struct {
	RedisPrefix string
	// DurableTTL bounds idle device entries in redis. Not a token validity
	// check — only the identity service decides validity.
	DurableTTL time.Duration
}

/*
====================================
ROUTE CONFIG
====================================
*/

// RoutesConfig is the static path table behind route classification. All
// matching is exact-or-prefix: a path matches a route when it equals the
// route or starts with route + "/".
type RoutesConfig struct {
	Public                  []string
	Protected               []string
	RedirectIfAuthenticated []string
	Realtime                []string
}

func matchRoute(path, route string) bool {
	return path == route || strings.HasPrefix(path, route+"/")
}

func matchAny(path string, routes []string) bool {
	for _, route := range routes {
		if matchRoute(path, route) {
			return true
		}
	}
	return false
}

// IsPublic reports whether path matches a public-route prefix.
func (rc RoutesConfig) IsPublic(path string) bool {
	return matchAny(path, rc.Public)
}

// IsProtected reports whether path matches a protected-route prefix.
func (rc RoutesConfig) IsProtected(path string) bool {
	return matchAny(path, rc.Protected)
}

// IsRedirectIfAuthenticated reports whether path matches a
// redirect-if-authenticated prefix (the login page).
func (rc RoutesConfig) IsRedirectIfAuthenticated(path string) bool {
	return matchAny(path, rc.RedirectIfAuthenticated)
}

// IsRealtime reports whether path matches a realtime-transport or
// hot-reload prefix.
func (rc RoutesConfig) IsRealtime(path string) bool {
	return matchAny(path, rc.Realtime)
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig drives post-login navigation and the login-page routes.
type LoginConfig struct {
	// Route is the login page path, also the target of edge denials.
	Route string
	// FromParam is the query parameter carrying the originally requested
	// protected path across the login redirect.
	FromParam string
	// AdminLanding is where admins land after login; it doubles as the
	// admin section prefix farmers are fenced away from.
	AdminLanding string
	// DefaultLanding is where every non-admin role lands.
	DefaultLanding string
}

/*
====================================
REVALIDATE CONFIG
====================================
*/

// RevalidateConfig controls background profile revalidation after a
// cache-trusting bootstrap.
type RevalidateConfig struct {
	Disabled bool
	Timeout  time.Duration
}

/*
====================================
RELAY CONFIG
====================================
*/

// RelayConfig configures the token relay endpoints.
type RelayConfig struct {
	// BasePath mounts the relay routes (cookie, token, validate).
	BasePath string
	// AllowedOrigins enables CORS for the dashboard SPA origin(s). Empty
	// disables CORS handling entirely.
	AllowedOrigins []string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the dashboard ships with.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			Name:     "token",
			Path:     "/",
			MaxAge:   24 * time.Hour,
			Secure:   false,
			HTTPOnly: false,
			SameSite: http.SameSiteLaxMode,
		},
		Store: StoreConfig{
			RedisPrefix: "fgc",
			DurableTTL:  30 * 24 * time.Hour,
		},
		Routes: RoutesConfig{
			Public: []string{
				"/login",
				"/api/auth",
				"/assets",
				"/static",
				"/favicon.ico",
				"/healthz",
			},
			Protected: []string{
				"/admin",
				"/overview",
				"/details",
				"/system-overview",
				"/settings",
				"/profile",
			},
			RedirectIfAuthenticated: []string{
				"/login",
			},
			Realtime: []string{
				"/ws",
				"/livereload",
			},
		},
		Login: LoginConfig{
			Route:          "/login",
			FromParam:      "from",
			AdminLanding:   "/admin",
			DefaultLanding: "/overview",
		},
		Revalidate: RevalidateConfig{
			Disabled: false,
			Timeout:  10 * time.Second,
		},
		Relay: RelayConfig{
			BasePath: "/api/auth",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot operate on.
func (c Config) Validate() error {
	if c.Cookie.Name == "" {
		return errors.New("Cookie.Name must not be empty")
	}
	if strings.ContainsAny(c.Cookie.Name, " ;,=") {
		return errors.New("Cookie.Name contains invalid characters")
	}
	if c.Cookie.MaxAge <= 0 {
		return errors.New("Cookie.MaxAge must be positive")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie.Path must start with /")
	}

	for _, group := range [][]string{
		c.Routes.Public,
		c.Routes.Protected,
		c.Routes.RedirectIfAuthenticated,
		c.Routes.Realtime,
	} {
		for _, route := range group {
			if !strings.HasPrefix(route, "/") {
				return errors.New("route prefixes must start with /: " + route)
			}
		}
	}

	for _, p := range []string{c.Login.Route, c.Login.AdminLanding, c.Login.DefaultLanding} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("login routes and landings must start with /")
		}
	}
	if c.Login.FromParam == "" {
		return errors.New("Login.FromParam must not be empty")
	}

	if !c.Revalidate.Disabled && c.Revalidate.Timeout <= 0 {
		return errors.New("Revalidate.Timeout must be positive when revalidation is enabled")
	}

	if c.Relay.BasePath != "" && !strings.HasPrefix(c.Relay.BasePath, "/") {
		return errors.New("Relay.BasePath must start with /")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Routes.Public = cloneStrings(cfg.Routes.Public)
	out.Routes.Protected = cloneStrings(cfg.Routes.Protected)
	out.Routes.RedirectIfAuthenticated = cloneStrings(cfg.Routes.RedirectIfAuthenticated)
	out.Routes.Realtime = cloneStrings(cfg.Routes.Realtime)
	out.Relay.AllowedOrigins = cloneStrings(cfg.Relay.AllowedOrigins)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
