// Package identity is the HTTP client for the remote identity service.
//
// It covers exactly the four endpoints the session lifecycle consumes —
// login, current-user, refresh, logout — and translates non-2xx responses
// into [APIError] values carrying the service's structured {message, code}
// body. Transport-level failures pass through untouched so callers can tell
// "the service said no" apart from "the network is down".
//
// The client imposes no timeout of its own; supply an *http.Client with
// whatever deadline policy the host application uses.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// User is the identity + role + tenant-scope record held for an
// authenticated session. It is replaced wholesale on every fetch, never
// field-patched from partial responses.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
}

// TokenPair is the access/refresh credential pair issued by login and
// refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest carries the credentials for POST /login. Tenant is optional.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Tenant   string `json:"tenant,omitempty"`
}

// LoginResponse is the successful login payload. The embedded user is the
// service's login-time snapshot; callers that gate authorization on the
// profile should re-fetch it via Me rather than trust this copy.
type LoginResponse struct {
	AccessToken        string `json:"accessToken"`
	RefreshToken       string `json:"refreshToken"`
	User               User   `json:"user"`
	RequiresOnboarding bool   `json:"requiresOnboarding"`
}

// APIError is a non-2xx response from the identity service.
type APIError struct {
	Status     int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RedirectTo string `json:"redirectTo"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("identity: %s (%d)", e.Message, e.Status)
}

// Client talks to one identity service instance. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the service at baseURL. httpClient may be
// nil, in which case http.DefaultClient is used.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("identity: empty base URL")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{baseURL: baseURL, http: httpClient}, nil
}

// Login exchanges credentials for a token pair and login-time user snapshot.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me fetches the full profile of the user the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Refresh exchanges a refresh credential for a fresh token pair. The old
// refresh token is consumed server-side whether or not the response arrives.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	req := struct {
		RefreshToken string `json:"refreshToken"`
	}{RefreshToken: refreshToken}

	var resp TokenPair
	if err := c.do(ctx, http.MethodPost, "/refresh", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the service to drop the session. Best effort; callers purge
// local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("identity: build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("identity: decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	// Bounded read; error bodies are small and a broken body still yields
	// a usable status-only error.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
