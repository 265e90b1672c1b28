package farmgate

import (
	"github.com/farmsight/farmgate/identity"
)

// UserProfile is the dashboard user profile. It aliases [identity.Profile]:
// the identity package owns the schema, the root package is the surface
// most callers import.
type UserProfile = identity.Profile

// FarmRef identifies the farm a farmer account is assigned to.
type FarmRef = identity.FarmRef

// Role is the coarse access role on a profile.
type Role = identity.Role

const (
	// RoleAdmin lands on the admin section after login.
	RoleAdmin = identity.RoleAdmin
	// RoleFarmer lands on the overview and is fenced out of the admin
	// section.
	RoleFarmer = identity.RoleFarmer
)

// SessionState is the per-device session snapshot the UI reads. IsLoading
// is true only while the device's first bootstrap is running; background
// revalidation never flips it back.
type SessionState struct {
	User      *UserProfile
	IsLoading bool
}

// Authenticated reports whether the snapshot carries a signed-in user.
func (s SessionState) Authenticated() bool {
	return s.User != nil
}

// LoginResult is returned by [Engine.Login] on success.
type LoginResult struct {
	Token      string
	User       UserProfile
	RedirectTo string
}

// EdgeDecision is the terminal outcome of one edge gatekeeper evaluation.
type EdgeDecision uint8

const (
	// EdgeDefaultPass: no table matched, the request passes unchanged.
	EdgeDefaultPass EdgeDecision = iota
	// EdgePublicPass: public, realtime, or hot-reload path.
	EdgePublicPass
	// EdgeProtectedDenied: protected path without a credential, redirected
	// to the login route with the original path preserved.
	EdgeProtectedDenied
	// EdgeProtectedAllowed: protected path with a credential, forwarded
	// with a bearer header injected when absent.
	EdgeProtectedAllowed
	// EdgeRedirectIfAuthPass: login page. The edge always passes it
	// through; only the client-side session bounces authenticated users.
	EdgeRedirectIfAuthPass
)

func (d EdgeDecision) String() string {
	switch d {
	case EdgePublicPass:
		return "public_pass"
	case EdgeProtectedDenied:
		return "protected_denied"
	case EdgeProtectedAllowed:
		return "protected_allowed"
	case EdgeRedirectIfAuthPass:
		return "redirect_if_auth_pass"
	default:
		return "default_pass"
	}
}

// RelayOp identifies one of the token relay endpoints for observability.
type RelayOp uint8

const (
	// RelayCookie is the body-token-to-cookie mirror endpoint.
	RelayCookie RelayOp = iota
	// RelayToken is the cookie-to-token read endpoint.
	RelayToken
	// RelayValidate is the token validation forwarding endpoint.
	RelayValidate
)

func (op RelayOp) String() string {
	switch op {
	case RelayCookie:
		return "cookie"
	case RelayToken:
		return "token"
	default:
		return "validate"
	}
}
