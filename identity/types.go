package identity

import "fmt"

// Role is the coarse access role carried on a [Profile]. The gateway only
// distinguishes admin from everything else; unknown roles are treated like
// RoleFarmer for landing purposes.
type Role string

const (
	// RoleAdmin grants access to the /admin section of the dashboard.
	RoleAdmin Role = "admin"
	// RoleFarmer is the default operator role, landed on /overview.
	RoleFarmer Role = "farmer"
)

// FarmRef points at the farm a farmer account is assigned to.
type FarmRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Profile is the user profile returned by the identity service. It is
// replaced wholesale on login and on background revalidation — never
// partially updated.
type Profile struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Role         Role     `json:"role"`
	AssignedFarm *FarmRef `json:"assignedFarm"`
}

// Equal reports whether two profiles are identical by value, including the
// assigned farm. Used to decide whether a revalidation response must
// replace the cached copy.
func (p Profile) Equal(other Profile) bool {
	if p.ID != other.ID ||
		p.Email != other.Email ||
		p.FirstName != other.FirstName ||
		p.LastName != other.LastName ||
		p.Role != other.Role {
		return false
	}
	if (p.AssignedFarm == nil) != (other.AssignedFarm == nil) {
		return false
	}
	if p.AssignedFarm != nil && *p.AssignedFarm != *other.AssignedFarm {
		return false
	}
	return true
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Grant is the result of a successful login: a bearer token plus the
// profile it was issued for.
type Grant struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// APIError is a non-2xx response from the identity service. The status
// code is preserved so relay handlers can forward it unchanged.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("identity: %s (status %d)", e.Message, e.StatusCode)
}
