// security.go sets the protective response headers of the gateway. The dashboard pages
// load the front end from this origin plus configured asset and avatar origins; the JSON
// API loads nothing. Every response that depends on the session cookie is marked
// uncacheable by NoStore.
package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/config"
)

// hstsMaxAge is one year.
const hstsMaxAge = 31536000

// HeaderPolicy is the set of security headers written on a response. An empty field
// removes the header, so a group policy fully replaces the one applied before it.
type HeaderPolicy struct {
	// HSTS is written only when the gateway is reached over HTTPS.
	HSTS                  bool
	ContentSecurityPolicy string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// PagePolicy returns the policy for the dashboard pages. Avatars come from the image
// origins (the backend's file host, typically); scripts, styles and fonts may also come
// from the asset origins.
func PagePolicy(h config.HeadersConfig, https bool) HeaderPolicy {
	assets := sources(h.AssetOrigins)
	csp := []string{
		"default-src 'self'",
		"script-src 'self'" + assets,
		"style-src 'self' 'unsafe-inline'" + assets,
		"font-src 'self'" + assets,
		"img-src 'self' data:" + sources(h.ImageOrigins),
		"connect-src 'self'",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}
	return HeaderPolicy{
		HSTS:                  https,
		ContentSecurityPolicy: strings.Join(csp, "; "),
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=()",
	}
}

// APIPolicy returns the policy for /api/v1. JSON is never rendered, so nothing may load.
func APIPolicy(https bool) HeaderPolicy {
	return HeaderPolicy{
		HSTS:                  https,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}
}

// SecurityHeaders writes p on every response.
func SecurityHeaders(p HeaderPolicy) gin.HandlerFunc {
	hsts := ""
	if p.HSTS {
		hsts = "max-age=" + strconv.Itoa(hstsMaxAge) + "; includeSubDomains"
	}
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", hsts)
		c.Header("Content-Security-Policy", p.ContentSecurityPolicy)
		c.Header("Referrer-Policy", p.ReferrerPolicy)
		c.Header("Permissions-Policy", p.PermissionsPolicy)

		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		c.Header("Cross-Origin-Resource-Policy", "same-origin")

		c.Next()
	}
}

// NoStore marks a response as per-user: never stored by browsers or proxies, and keyed
// on the cookie.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Writer.Header().Add("Vary", "Cookie")
		c.Next()
	}
}

// sources renders origins as CSP source expressions with a leading space.
func sources(origins []string) string {
	var b strings.Builder
	for _, o := range origins {
		o = strings.TrimSuffix(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(o)
	}
	return b.String()
}
