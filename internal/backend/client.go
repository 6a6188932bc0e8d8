// Package backend is the HTTP client for the church-management REST API.
//
// The dashboard gateway only calls three endpoints: credential login, first-time
// password setup and the profile ("me") endpoint used to refresh role assignments.
// Authenticated calls carry the session's bearer token through an oauth2 static token
// source. The authorization core never calls the backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/session"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read into an error message.
const maxErrorBody = 512

// Client talks to the backend API. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// LoginRequest is the credential payload forwarded to the backend.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// SetupPasswordRequest completes a first-time password setup.
type SetupPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// User is the identity block returned by the backend.
type User struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Verified bool   `json:"verified"`
}

// AuthResponse is the body of login, password setup and profile responses.
type AuthResponse struct {
	Token              string            `json:"token"`
	User               User              `json:"user"`
	Roles              []auth.Assignment `json:"roles"`
	NeedsPasswordSetup bool              `json:"needs_password_setup"`
}

// Session converts the response into a dashboard session. When the response carries
// no token (profile refresh), fallbackToken is kept.
func (r *AuthResponse) Session(fallbackToken string) *session.Session {
	token := r.Token
	if token == "" {
		token = fallbackToken
	}
	assignments := make([]auth.Assignment, len(r.Roles))
	copy(assignments, r.Roles)
	return &session.Session{
		Identity: session.Identity{
			Name:     r.User.Name,
			Avatar:   r.User.Avatar,
			Verified: r.User.Verified,
		},
		Token:       token,
		Assignments: assignments,
	}
}

// Login exchanges credentials for a token and the user's role assignments. An account
// that still needs a password returns the response together with ErrPasswordSetupRequired
// so the caller can create the zero-assignment setup session.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, c.HTTPClient, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: login response without token", ErrUnexpectedResponse)
	}
	if out.NeedsPasswordSetup {
		return &out, ErrPasswordSetupRequired
	}
	return &out, nil
}

// SetupPassword sets the first password for the account identified by token.
func (c *Client) SetupPassword(ctx context.Context, token string, in SetupPasswordRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, c.bearer(ctx, token), http.MethodPost, "/auth/setup-password", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the current identity and role assignments for token.
func (c *Client) Profile(ctx context.Context, token string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, c.bearer(ctx, token), http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// bearer returns an HTTP client that adds "Authorization: Bearer <token>" to every
// request while keeping the configured timeout.
func (c *Client) bearer(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	// oauth2.NewClient only carries over the base transport.
	hc.Timeout = c.HTTPClient.Timeout
	return hc
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBackendUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrInvalidCredentials
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrBackendUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedResponse, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnexpectedResponse, err)
	}
	return nil
}
