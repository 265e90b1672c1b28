package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API is the surface the gateway needs from the identity service. The
// concrete [Client] implements it; tests substitute stubs.
type API interface {
	// Login exchanges credentials for a bearer token and profile.
	Login(ctx context.Context, email, password string) (*Grant, error)
	// Profile validates a bearer token and returns the profile it belongs
	// to. Invalid or expired tokens come back as *APIError.
	Profile(ctx context.Context, token string) (*Profile, error)
}

// ErrEmptyToken is returned by [Client.Profile] when called without a token.
var ErrEmptyToken = errors.New("identity: empty token")

const defaultTimeout = 10 * time.Second

// Client talks to the identity service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to add a
// transport-level timeout or test round-tripper.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a client rooted at baseURL (e.g. "https://api.farmsight.io").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login calls POST /auth/login with the given credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*Grant, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("identity: encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var grant Grant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("identity: decode login response: %w", err)
	}
	if grant.Token == "" {
		// A 2xx without a token is a broken upstream, not a success; never
		// propagate the success status on an error.
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "login response missing token"}
	}

	return &grant, nil
}

// Profile calls GET /auth/token with the token as a bearer header.
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/token", nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var envelope struct {
		User Profile `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("identity: decode profile response: %w", err)
	}
	if envelope.User.ID == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "profile response missing user"}
	}

	return &envelope.User, nil
}

// apiError drains the response body looking for a {"message": ...} or
// {"error": ...} envelope; falls back to the raw status.
func apiError(resp *http.Response) error {
	out := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return out
	}

	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Message != "" {
			out.Message = envelope.Message
		} else if envelope.Error != "" {
			out.Message = envelope.Error
		}
	}

	return out
}
