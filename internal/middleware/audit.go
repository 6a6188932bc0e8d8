// audit.go connects guard decisions to the metrics and the access audit trail.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/audit"
	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/session"
	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

// recordDecision counts the decision and hands it to the recorder. The recorder
// writes in the background so the response is never held up.
func recordDecision(c *gin.Context, rec *audit.Recorder, guard string, d auth.Decision, sess *session.Session) {
	telemetry.RecordDecision(guard, d.Granted, string(d.Reason))

	if !rec.Wants(d.Granted) {
		return
	}

	entry := audit.Entry{
		RequestID: c.GetString(RequestIDKey),
		Guard:     guard,
		Method:    c.Request.Method,
		Path:      c.Request.URL.Path,
		Granted:   d.Granted,
		Reason:    string(d.Reason),
		IPAddress: c.ClientIP(),
	}
	if sess != nil {
		entry.UserName = sess.Identity.Name
		entry.Roles = sess.Roles()
	}
	rec.Record(entry)
}
