// guard.go holds the page guards. RouteGuard decides every /dashboard request against
// the permission registry before any handler runs; PICGuard additionally scopes a
// subtree to sessions holding PIC authority for a relevant role.
package middleware

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/audit"
	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/config"
	"github.com/church-dashboard/church-dashboard/internal/session"
)

// SessionKey is the gin.Context key holding the *session.Session of the request.
const SessionKey = "session"

const (
	guardRoute = "route"
	guardPIC   = "pic"
)

// SessionFromContext returns the session a guard stored on the context, or nil.
func SessionFromContext(c *gin.Context) *session.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

// loadSession returns the context session, loading it from the cookie on first use.
func loadSession(c *gin.Context, store *session.Store) *session.Session {
	if sess := SessionFromContext(c); sess != nil {
		return sess
	}
	sess := store.Load(c.Request)
	if sess != nil {
		c.Set(SessionKey, sess)
	}
	return sess
}

// RouteGuard denies by default. A request without a usable session is sent to the
// login route with the original target in ?next=; a denied request is sent to the
// not-found route so protected pages are indistinguishable from missing ones.
func RouteGuard(store *session.Store, ev *auth.Evaluator, rec *audit.Recorder, routes config.RoutesConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CanonicalPath(c.Request.URL.Path)
		if !ok {
			// Rules match on the clean form only; decide on the next request.
			target := p
			if q := c.Request.URL.RawQuery; q != "" {
				target += "?" + q
			}
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}

		sess := loadSession(c, store)
		d := ev.Decide(p, sess)
		recordDecision(c, rec, guardRoute, d, sess)

		switch {
		case d.Granted:
			c.Next()
		case d.Reason == auth.ReasonNoSession:
			c.Redirect(http.StatusFound, loginRedirect(routes.Login, c.Request.URL))
			c.Abort()
		default:
			c.Redirect(http.StatusFound, routes.NotFound)
			c.Abort()
		}
	}
}

// PICGuard protects a route group with the PIC requirement. Exempt paths pass
// untouched, administrators bypass, and everyone else needs a PIC assignment for one
// of the relevant roles (any role when none are configured).
func PICGuard(store *session.Store, ev *auth.Evaluator, rec *audit.Recorder, pic config.PICConfig, routes config.RoutesConfig) gin.HandlerFunc {
	relevant := auth.NewRoleSet(pic.RelevantRoles...)
	links := safeLinks(pic, routes)

	return func(c *gin.Context) {
		if p, ok := CanonicalPath(c.Request.URL.Path); ok && isExempt(p, pic.ExemptPaths) {
			c.Next()
			return
		}

		sess := loadSession(c, store)
		var d auth.Decision
		switch {
		case !sess.Authenticated():
			d = auth.Decision{Reason: auth.ReasonNoSession}
		case ev.IsAdmin(sess):
			d = auth.Decision{Granted: true, Reason: auth.ReasonAdmin}
		case ev.HasRelevantPIC(sess, relevant):
			d = auth.Decision{Granted: true, Reason: auth.ReasonPIC}
		default:
			d = auth.Decision{Reason: auth.ReasonPICRequired}
		}
		recordDecision(c, rec, guardPIC, d, sess)

		switch {
		case d.Granted:
			c.Next()
		case d.Reason == auth.ReasonNoSession:
			c.Redirect(http.StatusFound, loginRedirect(routes.Login, c.Request.URL))
			c.Abort()
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "access denied",
				"message": "This page is only available to the person in charge of the ministry.",
				"links":   links,
			})
		}
	}
}

// RequireSession is the API counterpart of RouteGuard: it only checks that a session
// exists and answers 401 JSON instead of redirecting.
func RequireSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !loadSession(c, store).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin(ev *auth.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ev.IsAdmin(SessionFromContext(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator role required"})
			return
		}
		c.Next()
	}
}

// Link is a navigation target offered on the access-denied payload.
type Link struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

func safeLinks(pic config.PICConfig, routes config.RoutesConfig) []Link {
	links := make([]Link, 0, len(pic.ExemptPaths)+1)
	if routes.Home != "" {
		links = append(links, Link{Title: "Dashboard", Href: routes.Home})
	}
	for _, p := range pic.ExemptPaths {
		links = append(links, Link{Title: titleFromPath(p), Href: p})
	}
	return links
}

func titleFromPath(p string) string {
	seg := p[strings.LastIndex(p, "/")+1:]
	if seg == "" {
		return p
	}
	return strings.ToUpper(seg[:1]) + seg[1:]
}

// isExempt matches a configured path exactly or as a parent directory.
func isExempt(path string, exempt []string) bool {
	for _, e := range exempt {
		e = strings.TrimSuffix(e, "/")
		if e == "" {
			continue
		}
		if path == e || strings.HasPrefix(path, e+"/") {
			return true
		}
	}
	return false
}

func loginRedirect(login string, target *url.URL) string {
	if target == nil || target.Path == "" {
		return login
	}
	sep := "?"
	if strings.Contains(login, "?") {
		sep = "&"
	}
	return login + sep + url.Values{"next": {target.RequestURI()}}.Encode()
}

// CanonicalPath cleans p the way path.Clean does. The boolean is false when p was not
// already canonical ("//", "/./", "/../", a trailing slash, or empty).
func CanonicalPath(p string) (string, bool) {
	if p == "" {
		return "/", false
	}
	clean := path.Clean(p)
	return clean, clean == p
}

// ScopedTo runs h for prefix and paths below it, comparing the cleaned path; other
// requests pass through.
func ScopedTo(prefix string, h gin.HandlerFunc) gin.HandlerFunc {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(c *gin.Context) {
		p, _ := CanonicalPath(c.Request.URL.Path)
		if prefix != "" && (p == prefix || strings.HasPrefix(p, prefix+"/")) {
			h(c)
			return
		}
		c.Next()
	}
}
