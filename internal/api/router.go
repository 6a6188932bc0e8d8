// Package api wires the HTTP surface of the dashboard gateway.
//
// Dashboard pages under /dashboard are served only after RouteGuard has decided the
// request; the PIC subtree is additionally scoped by PICGuard. The JSON API under
// /api/v1 backs the single-page front end: session lifecycle, the filtered menu and
// an access check. Login and not-found pages are public.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/church-dashboard/church-dashboard/internal/api/admin"
	"github.com/church-dashboard/church-dashboard/internal/audit"
	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/config"
	"github.com/church-dashboard/church-dashboard/internal/menu"
	"github.com/church-dashboard/church-dashboard/internal/middleware"
	"github.com/church-dashboard/church-dashboard/internal/session"
)

// Dependencies are the collaborators of the router. DB, AuditRepo and Limiter may be
// nil; the corresponding features are then disabled.
type Dependencies struct {
	Config    *config.Config
	Version   string
	DB        *sql.DB
	Store     *session.Store
	Evaluator *auth.Evaluator
	Menu      *menu.Builder
	Backend   admin.Backend
	Recorder  *audit.Recorder
	AuditRepo admin.AuditLister
	Limiter   middleware.Limiter
}

// NewRouter creates and configures the Gin router
func NewRouter(d Dependencies) *gin.Engine {
	cfg := d.Config
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))

	https := cfg.Session.Secure || cfg.Security.TLS.Enabled
	router.Use(middleware.SecurityHeaders(middleware.PagePolicy(cfg.Security.Headers, https)))

	router.GET("/health", healthCheckHandler(d.DB))
	router.GET("/version", versionHandler(d.Version))

	// Public pages
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, cfg.Routes.Home) })
	router.GET(cfg.Routes.Login, middleware.NoStore(), loginPageHandler(d.Store, cfg))
	router.GET(cfg.Routes.NotFound, spaHandler(cfg.Server.StaticDir, http.StatusNotFound))
	if dir := cfg.Server.StaticDir; dir != "" {
		router.Static("/assets", filepath.Join(dir, "assets"))
	}
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Redirect(http.StatusFound, cfg.Routes.NotFound)
	})

	// Guarded dashboard pages
	dashboard := router.Group(cfg.Routes.Home,
		middleware.NoStore(),
		middleware.RouteGuard(d.Store, d.Evaluator, d.Recorder, cfg.Routes),
		middleware.ScopedTo(cfg.Access.PIC.Prefix,
			middleware.PICGuard(d.Store, d.Evaluator, d.Recorder, cfg.Access.PIC, cfg.Routes)),
	)
	{
		page := spaHandler(cfg.Server.StaticDir, http.StatusOK)
		dashboard.GET("", page)
		dashboard.GET("/*page", page)
	}

	// JSON API
	authHandlers := admin.NewAuthHandlers(d.Backend, d.Store, d.Evaluator)
	accessHandlers := admin.NewAccessHandlers(d.Store, d.Evaluator, d.Menu)
	auditHandlers := admin.NewAuditHandlers(d.AuditRepo)
	requireSession := middleware.RequireSession(d.Store)

	loginChain := []gin.HandlerFunc{}
	if d.Limiter != nil {
		loginChain = append(loginChain, middleware.RateLimitMiddleware(d.Limiter))
	}

	v1 := router.Group("/api/v1", middleware.SecurityHeaders(middleware.APIPolicy(https)), middleware.NoStore())
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/login", append(loginChain, authHandlers.LoginHandler())...)
		authGroup.POST("/setup-password", append(loginChain, authHandlers.SetupPasswordHandler())...)
		authGroup.POST("/logout", authHandlers.LogoutHandler())
		authGroup.GET("/me", requireSession, authHandlers.MeHandler())
		authGroup.POST("/refresh", requireSession, authHandlers.RefreshHandler())

		v1.GET("/menu", requireSession, accessHandlers.MenuHandler())
		v1.GET("/access/check", accessHandlers.CheckHandler())

		adminOnly := v1.Group("/access", requireSession, middleware.RequireAdmin(d.Evaluator))
		adminOnly.GET("/rules", accessHandlers.RulesHandler())
		adminOnly.GET("/audit", auditHandlers.ListHandler())
	}

	return router
}

// healthCheckHandler reports liveness. The database is only pinged when configured.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{"database": "disabled"}
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
			checks["database"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler(version string) gin.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     version,
			"api_version": "v1",
		})
	}
}

// loginPageHandler sends a signed-in user on to ?next= (or home) and serves the login
// page to everyone else.
func loginPageHandler(store *session.Store, cfg *config.Config) gin.HandlerFunc {
	page := spaHandler(cfg.Server.StaticDir, http.StatusOK)
	return func(c *gin.Context) {
		if store.Load(c.Request).Authenticated() {
			c.Redirect(http.StatusFound, safeNext(c.Query("next"), cfg.Routes.Home))
			return
		}
		page(c)
	}
}

// safeNext accepts only same-site absolute paths so ?next= cannot redirect off-site.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

const placeholderPage = `<!DOCTYPE html>
<html lang="id"><head><meta charset="utf-8"><title>Dashboard Gereja</title></head>
<body><div id="app"></div></body></html>
`

// spaHandler serves the front end's index.html with the given status. Without a
// static directory a bare placeholder page is served.
func spaHandler(dir string, status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if dir != "" {
			index, err := os.ReadFile(filepath.Join(dir, "index.html"))
			if err == nil {
				c.Data(status, "text/html; charset=utf-8", index)
				return
			}
			slog.Warn("failed to read index.html", "dir", dir, "error", err)
		}
		c.Data(status, "text/html; charset=utf-8", []byte(placeholderPage))
	}
}

// LoggerMiddleware writes one slog record per request.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
		)
	}
}

// CORSMiddleware handles CORS for the configured front-end origins. Credentials are
// allowed so the session cookie reaches the API; origins therefore match literally and
// a "*" entry matches nothing.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		if origin != "" {
			for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
				if allowedOrigin == origin {
					allowed = true
					break
				}
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
