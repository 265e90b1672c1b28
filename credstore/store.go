package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmsight/farmgate/identity"
)

// ErrRedisUnavailable wraps transport-level failures of the durable medium.
var ErrRedisUnavailable = errors.New("credstore: redis unavailable")

// ErrMissingDevice is returned when a store operation is attempted without
// a device identifier to key the durable medium.
var ErrMissingDevice = errors.New("credstore: missing device id")

// DefaultDurableTTL bounds how long an idle device keeps its durable copy.
// Unlike the cookie's 24h cap this is server hygiene, not a validity check.
const DefaultDurableTTL = 30 * 24 * time.Hour

// Credentials is the result of a [Store.Read]: both fields empty means no
// session.
type Credentials struct {
	Token   string
	Profile *identity.Profile
}

// Hooks receives store lifecycle notifications. All methods may be called
// concurrently; implementations must not block.
type Hooks interface {
	// Repaired fires when Read copied a cookie token back into the durable
	// medium.
	Repaired(deviceID string)
	// Reset fires when a corrupt or half-present entry was cleared and
	// treated as no session.
	Reset(deviceID string)
}

type noopHooks struct{}

func (noopHooks) Repaired(string) {}
func (noopHooks) Reset(string)    {}

// Store is the dual-medium credential store.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	durableTTL time.Duration
	cookies    CookieOptions
	hooks      Hooks
	logger     *slog.Logger
}

// NewStore creates a credential store backed by the given redis client.
// prefix namespaces the durable keys; durableTTL <= 0 selects
// [DefaultDurableTTL].
func NewStore(client redis.UniversalClient, prefix string, durableTTL time.Duration, cookies CookieOptions, hooks Hooks, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "fgc"
	}
	if durableTTL <= 0 {
		durableTTL = DefaultDurableTTL
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		redis:      client,
		prefix:     prefix,
		durableTTL: durableTTL,
		cookies:    cookies.normalize(),
		hooks:      hooks,
		logger:     logger,
	}
}

// CookieOptions returns the normalized cookie policy the store writes with.
func (s *Store) CookieOptions() CookieOptions {
	return s.cookies
}

func (s *Store) tokenKey(deviceID string) string {
	return s.prefix + ":" + deviceID + ":token"
}

func (s *Store) profileKey(deviceID string) string {
	return s.prefix + ":" + deviceID + ":profile"
}

// Write stores the token and profile in the durable medium and issues the
// token cookie on w. The cookie write is best-effort: a nil writer degrades
// silently, the durable medium stays authoritative.
func (s *Store) Write(ctx context.Context, w http.ResponseWriter, deviceID, token string, profile identity.Profile) error {
	if deviceID == "" {
		return ErrMissingDevice
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("credstore: marshal profile: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(deviceID), token, s.durableTTL)
		pipe.Set(ctx, s.profileKey(deviceID), data, s.durableTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	SetTokenCookie(w, token, s.cookies)
	return nil
}

// Read returns the stored credentials, preferring the durable medium. When
// the durable medium lacks a token but the request cookie carries one, the
// cookie token is returned and copied back into the durable medium
// (repair-on-read). A corrupt serialized profile clears both entries and
// reads as no session.
func (s *Store) Read(ctx context.Context, r *http.Request, deviceID string) (Credentials, error) {
	if deviceID == "" {
		return Credentials{}, ErrMissingDevice
	}

	token, err := s.redis.Get(ctx, s.tokenKey(deviceID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Credentials{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if token == "" {
		if cookieToken, ok := TokenFromRequest(r, s.cookies.Name); ok {
			token = cookieToken
			if err := s.redis.Set(ctx, s.tokenKey(deviceID), token, s.durableTTL).Err(); err != nil {
				s.logger.Warn("credstore: repair-on-read failed", "device", deviceID, "error", err)
			} else {
				s.hooks.Repaired(deviceID)
			}
		}
	}

	raw, err := s.redis.Get(ctx, s.profileKey(deviceID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Credentials{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if token == "" && len(raw) == 0 {
		return Credentials{}, nil
	}

	var profile *identity.Profile
	if len(raw) > 0 {
		var decoded identity.Profile
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// Malformed cached profile: recoverable, treated as no session.
			s.logger.Warn("credstore: corrupt profile cleared", "device", deviceID, "error", err)
			if clearErr := s.Clear(ctx, nil, deviceID); clearErr != nil {
				return Credentials{}, clearErr
			}
			s.hooks.Reset(deviceID)
			return Credentials{}, nil
		}
		profile = &decoded
	}

	return Credentials{Token: token, Profile: profile}, nil
}

// Clear removes both durable entries and expires the token cookie.
// Clearing an already-empty device is a no-op, not an error.
func (s *Store) Clear(ctx context.Context, w http.ResponseWriter, deviceID string) error {
	if deviceID == "" {
		return ErrMissingDevice
	}

	if err := s.redis.Del(ctx, s.tokenKey(deviceID), s.profileKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ClearTokenCookie(w, s.cookies)
	return nil
}
