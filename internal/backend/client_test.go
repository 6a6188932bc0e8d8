package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/church-dashboard/church-dashboard/internal/auth"
)

func newBackend(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_Success(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		var in LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "maria@example.org", in.Identifier)

		writeJSON(w, http.StatusOK, AuthResponse{
			Token: "tok-1",
			User:  User{Name: "Maria", Verified: true},
			Roles: []auth.Assignment{{RoleName: "musik", ScopeID: "c1", IsPIC: true}},
		})
	})

	resp, err := c.Login(context.Background(), LoginRequest{Identifier: "maria@example.org", Password: "secret"})
	require.NoError(t, err)

	sess := resp.Session("")
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, "Maria", sess.Identity.Name)
	assert.True(t, sess.Authenticated())
}

func TestLogin_PasswordSetupRequired(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AuthResponse{Token: "setup-tok", NeedsPasswordSetup: true})
	})

	resp, err := c.Login(context.Background(), LoginRequest{Identifier: "new", Password: "otp"})
	assert.ErrorIs(t, err, ErrPasswordSetupRequired)
	require.NotNil(t, resp)
	assert.False(t, resp.Session("").Authenticated())
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad password"}`, ErrInvalidCredentials},
		{"forbidden", http.StatusForbidden, `{}`, ErrInvalidCredentials},
		{"server error", http.StatusBadGateway, ``, ErrBackendUnavailable},
		{"unprocessable", http.StatusUnprocessableEntity, `{"error":"identifier"}`, ErrUnexpectedResponse},
		{"bad json", http.StatusOK, `{not json`, ErrUnexpectedResponse},
		{"missing token", http.StatusOK, `{"user":{"name":"x"}}`, ErrUnexpectedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Login(context.Background(), LoginRequest{Identifier: "a", Password: "b"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogin_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Login(context.Background(), LoginRequest{Identifier: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestProfile_SendsBearerToken(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/me", r.URL.Path)
		assert.Equal(t, "Bearer tok-9", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, AuthResponse{
			User:  User{Name: "Yohanes"},
			Roles: []auth.Assignment{{RoleName: "gembala", ScopeID: "c1"}, {RoleName: "gembala", ScopeID: "c2"}},
		})
	})

	resp, err := c.Profile(context.Background(), "tok-9")
	require.NoError(t, err)
	sess := resp.Session("tok-9")
	assert.Equal(t, "tok-9", sess.Token, "profile keeps the existing token")
	assert.Len(t, sess.Assignments, 2, "assignments are never merged by role")
}

func TestSetupPassword(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/setup-password", r.URL.Path)
		assert.Equal(t, "Bearer setup-tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, AuthResponse{
			Token: "full-tok",
			User:  User{Name: "Baru"},
			Roles: []auth.Assignment{{RoleName: "jemaat", ScopeID: "c1"}},
		})
	})

	resp, err := c.SetupPassword(context.Background(), "setup-tok", SetupPasswordRequest{Password: "p@ssw0rd!", PasswordConfirm: "p@ssw0rd!"})
	require.NoError(t, err)
	assert.Equal(t, "full-tok", resp.Session("setup-tok").Token)
}
