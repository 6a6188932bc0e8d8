// audit.go lets administrators browse the access audit trail.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/db/models"
	"github.com/church-dashboard/church-dashboard/internal/db/repositories"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditLister is implemented by repositories.AccessAuditRepository.
type AuditLister interface {
	ListAccessAudit(ctx context.Context, f repositories.AccessAuditFilters, limit, offset int) ([]models.AccessAudit, int, error)
}

// AuditHandlers handles the access audit endpoints
type AuditHandlers struct {
	repo AuditLister
}

// NewAuditHandlers creates a new AuditHandlers instance. repo may be nil when no
// database is configured; the handler then answers 503.
func NewAuditHandlers(repo AuditLister) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

// ListHandler returns audit entries, newest first.
// GET /api/v1/access/audit?granted=false&guard=pic&path=/dashboard/pelayanan&user=&since=&until=&limit=&offset=
func (h *AuditHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit storage is not configured"})
			return
		}

		filters, err := parseAuditFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit, offset := pagination(c)

		entries, total, err := h.repo.ListAccessAudit(c.Request.Context(), filters, limit, offset)
		if err != nil {
			slog.Error("failed to list access audit", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit entries"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"entries": entries,
			"total":   total,
			"limit":   limit,
			"offset":  offset,
		})
	}
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseAuditFilters(c *gin.Context) (repositories.AccessAuditFilters, error) {
	var f repositories.AccessAuditFilters

	if v := c.Query("granted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, filterError("granted must be true or false")
		}
		f.Granted = &b
	}
	if v := c.Query("guard"); v != "" {
		f.Guard = &v
	}
	if v := c.Query("path"); v != "" {
		f.Path = &v
	}
	if v := c.Query("user"); v != "" {
		f.UserName = &v
	}
	for key, dst := range map[string]**time.Time{"since": &f.Since, "until": &f.Until} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, filterError(key + " must be an RFC 3339 timestamp")
		}
		*dst = &t
	}
	return f, nil
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	offset, err = strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
