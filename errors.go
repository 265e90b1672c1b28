package farmgate

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the identity service
	// rejects the email/password pair. The backend message is attached by
	// wrapping.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityUnavailable is returned when the identity service cannot
	// be reached or answers outside the auth failure range.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)
