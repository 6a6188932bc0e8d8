// access.go serves the navigation menu and the access check used by the dashboard
// front end to hide links and pre-check navigation.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/menu"
	"github.com/church-dashboard/church-dashboard/internal/middleware"
	"github.com/church-dashboard/church-dashboard/internal/session"
	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

// AccessHandlers exposes the evaluator and the menu builder over JSON.
type AccessHandlers struct {
	store     *session.Store
	evaluator *auth.Evaluator
	menu      *menu.Builder
}

// NewAccessHandlers creates a new AccessHandlers instance
func NewAccessHandlers(store *session.Store, ev *auth.Evaluator, mb *menu.Builder) *AccessHandlers {
	return &AccessHandlers{store: store, evaluator: ev, menu: mb}
}

// MenuHandler returns the menu sections visible to the session, filtered by ?q=.
// Must run behind middleware.RequireSession.
// GET /api/v1/menu
func (h *AccessHandlers) MenuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.SessionFromContext(c)
		q := strings.TrimSpace(c.Query("q"))
		c.JSON(http.StatusOK, gin.H{
			"query":    q,
			"sections": h.menu.Build(sess, q),
		})
	}
}

// CheckResponse is the body of the access check.
type CheckResponse struct {
	Path    string `json:"path"`
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// CheckHandler evaluates ?path= for the caller's session. The path is cleaned first and
// the response carries the cleaned form. It never redirects; a missing session is
// reported as reason "no_session".
// GET /api/v1/access/check
func (h *AccessHandlers) CheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("path")
		if raw == "" || !strings.HasPrefix(raw, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path must be an absolute route such as /dashboard/jemaat"})
			return
		}
		path, _ := middleware.CanonicalPath(raw)

		sess := middleware.SessionFromContext(c)
		if sess == nil {
			sess = h.store.Load(c.Request)
		}
		d := h.evaluator.Decide(path, sess)
		telemetry.RecordDecision("check", d.Granted, string(d.Reason))

		c.JSON(http.StatusOK, CheckResponse{Path: path, Granted: d.Granted, Reason: string(d.Reason)})
	}
}

// RulesHandler lists the active permission table. Administrators only.
// GET /api/v1/access/rules
func (h *AccessHandlers) RulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rules := h.evaluator.Registry().Rules()
		c.JSON(http.StatusOK, gin.H{
			"admin_role": h.evaluator.AdminRole(),
			"rules":      rules,
			"count":      len(rules),
		})
	}
}
