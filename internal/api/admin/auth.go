// auth.go implements the session lifecycle endpoints: credential login, first-time
// password setup, role refresh, logout and the current-user view.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/backend"
	"github.com/church-dashboard/church-dashboard/internal/middleware"
	"github.com/church-dashboard/church-dashboard/internal/session"
	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

// Backend is the subset of the backend API used by the auth handlers.
type Backend interface {
	Login(ctx context.Context, in backend.LoginRequest) (*backend.AuthResponse, error)
	SetupPassword(ctx context.Context, token string, in backend.SetupPasswordRequest) (*backend.AuthResponse, error)
	Profile(ctx context.Context, token string) (*backend.AuthResponse, error)
}

// AuthHandlers handles authentication-related endpoints
type AuthHandlers struct {
	backend   Backend
	store     *session.Store
	evaluator *auth.Evaluator
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(b Backend, store *session.Store, ev *auth.Evaluator) *AuthHandlers {
	return &AuthHandlers{backend: b, store: store, evaluator: ev}
}

// MeResponse describes the signed-in user to the dashboard front end.
type MeResponse struct {
	Identity           session.Identity  `json:"identity"`
	Roles              []string          `json:"roles"`
	Assignments        []auth.Assignment `json:"assignments"`
	IsAdmin            bool              `json:"is_admin"`
	NeedsPasswordSetup bool              `json:"needs_password_setup"`
}

func (h *AuthHandlers) me(sess *session.Session) MeResponse {
	assignments := sess.RoleAssignments()
	if assignments == nil {
		assignments = []auth.Assignment{}
	}
	return MeResponse{
		Identity:           sess.Identity,
		Roles:              sess.Roles(),
		Assignments:        assignments,
		IsAdmin:            h.evaluator.IsAdmin(sess),
		NeedsPasswordSetup: !sess.Authenticated(),
	}
}

// LoginHandler exchanges credentials for a session cookie.
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req backend.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and password are required"})
			return
		}

		resp, err := h.backend.Login(c.Request.Context(), req)
		switch {
		case errors.Is(err, backend.ErrPasswordSetupRequired):
			// Zero-assignment session: it only unlocks the password setup endpoint.
			sess := resp.Session("")
			sess.Assignments = nil
			if !h.save(c, sess) {
				return
			}
			telemetry.LoginAttemptsTotal.WithLabelValues("setup_required").Inc()
			c.JSON(http.StatusOK, h.me(sess))
			return
		case err != nil:
			h.backendError(c, "login", err)
			return
		}

		sess := resp.Session("")
		if !sess.Authenticated() {
			telemetry.LoginAttemptsTotal.WithLabelValues("no_roles").Inc()
			c.JSON(http.StatusForbidden, gin.H{"error": "this account has no dashboard roles"})
			return
		}
		if !h.save(c, sess) {
			return
		}

		telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
		slog.Info("user signed in", "user", sess.Identity.Name, "roles", sess.Roles())
		c.JSON(http.StatusOK, h.me(sess))
	}
}

// SetupPasswordHandler completes a first-time password setup and upgrades the setup
// session to a full one.
// POST /api/v1/auth/setup-password
func (h *AuthHandlers) SetupPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		current := h.store.Load(c.Request)
		if current == nil || current.Token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in before setting a password"})
			return
		}

		var req backend.SetupPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
			return
		}
		if req.Password != req.PasswordConfirm {
			c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
			return
		}

		resp, err := h.backend.SetupPassword(c.Request.Context(), current.Token, req)
		if err != nil {
			h.backendError(c, "setup password", err)
			return
		}

		sess := resp.Session(current.Token)
		if !h.save(c, sess) {
			return
		}
		c.JSON(http.StatusOK, h.me(sess))
	}
}

// RefreshHandler reloads identity and role assignments from the backend profile
// endpoint, so role changes apply without signing out. Must run behind
// middleware.RequireSession.
// POST /api/v1/auth/refresh
func (h *AuthHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		current := middleware.SessionFromContext(c)

		resp, err := h.backend.Profile(c.Request.Context(), current.Token)
		if err != nil {
			if errors.Is(err, backend.ErrInvalidCredentials) {
				h.store.Expire(c.Writer)
			}
			h.backendError(c, "refresh", err)
			return
		}

		sess := resp.Session(current.Token)
		if !sess.Authenticated() {
			h.store.Expire(c.Writer)
			c.JSON(http.StatusForbidden, gin.H{"error": "this account no longer has dashboard roles"})
			return
		}
		if !h.save(c, sess) {
			return
		}
		c.JSON(http.StatusOK, h.me(sess))
	}
}

// MeHandler returns the current session. Must run behind middleware.RequireSession.
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.me(middleware.SessionFromContext(c)))
	}
}

// LogoutHandler drops the cookie and redirects to the login page with a 303.
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess := h.store.Load(c.Request); sess != nil {
			slog.Info("user signed out", "user", sess.Identity.Name)
		}
		h.store.Clear(c.Writer, c.Request)
		c.Abort()
	}
}

func (h *AuthHandlers) save(c *gin.Context, sess *session.Session) bool {
	if err := h.store.Save(c.Writer, sess); err != nil {
		slog.Error("failed to write session cookie", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return false
	}
	return true
}

func (h *AuthHandlers) backendError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		if op == "login" {
			telemetry.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		if op == "login" {
			telemetry.LoginAttemptsTotal.WithLabelValues("backend_error").Inc()
		}
		slog.Error("backend call failed", "op", op, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "the membership service is unavailable, please try again"})
	}
}
