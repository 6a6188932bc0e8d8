package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/church-dashboard/church-dashboard/internal/config"
)

func securityHeaders(handlers ...gin.HandlerFunc) http.Header {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	return w.Header()
}

func TestSecurityHeaders_Policies(t *testing.T) {
	tests := []struct {
		name   string
		policy HeaderPolicy
		want   map[string]string
	}{
		{
			name:   "pages over https",
			policy: PagePolicy(config.HeadersConfig{}, true),
			want: map[string]string{
				"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
				"Content-Security-Policy":   "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; font-src 'self'; img-src 'self' data:; connect-src 'self'; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'",
				"Referrer-Policy":           "strict-origin-when-cross-origin",
				"Permissions-Policy":        "geolocation=(), microphone=(), camera=()",
			},
		},
		{
			name:   "pages over plain http",
			policy: PagePolicy(config.HeadersConfig{}, false),
			want:   map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name:   "json api",
			policy: APIPolicy(true),
			want: map[string]string{
				"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
				"Referrer-Policy":         "no-referrer",
				"Permissions-Policy":      "",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := securityHeaders(SecurityHeaders(tt.policy))
			for k, v := range tt.want {
				assert.Equal(t, v, h.Get(k), k)
			}
			assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
			assert.Equal(t, "same-origin", h.Get("Cross-Origin-Opener-Policy"))
			assert.Empty(t, h.Get("Cross-Origin-Embedder-Policy"), "avatars from other origins must stay loadable")
			assert.Empty(t, h.Get("X-XSS-Protection"))
		})
	}
}

func TestPagePolicy_ExtraOrigins(t *testing.T) {
	p := PagePolicy(config.HeadersConfig{
		ImageOrigins: []string{"https://avatars.example.org/", " ", "https://files.example.org"},
		AssetOrigins: []string{"https://cdn.example.org"},
	}, false)

	assert.Contains(t, p.ContentSecurityPolicy, "img-src 'self' data: https://avatars.example.org https://files.example.org;")
	assert.Contains(t, p.ContentSecurityPolicy, "script-src 'self' https://cdn.example.org;")
	assert.Contains(t, p.ContentSecurityPolicy, "style-src 'self' 'unsafe-inline' https://cdn.example.org;")
	assert.Contains(t, p.ContentSecurityPolicy, "font-src 'self' https://cdn.example.org;")
	assert.Contains(t, p.ContentSecurityPolicy, "connect-src 'self';")
}

func TestSecurityHeaders_LaterPolicyReplacesEarlier(t *testing.T) {
	h := securityHeaders(
		SecurityHeaders(PagePolicy(config.HeadersConfig{}, true)),
		SecurityHeaders(APIPolicy(false)),
	)
	assert.Empty(t, h.Get("Strict-Transport-Security"))
	assert.Empty(t, h.Get("Permissions-Policy"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
}

func TestNoStore(t *testing.T) {
	cors := func(c *gin.Context) {
		c.Header("Vary", "Origin")
		c.Next()
	}
	h := securityHeaders(cors, NoStore())
	assert.Equal(t, "no-store", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, []string{"Origin", "Cookie"}, h.Values("Vary"))
}
