// Package main is the entry point for the church dashboard gateway binary.
// It dispatches three subcommands (serve, migrate and version) via a switch on
// os.Args. The serve command runs audit migrations on startup when the audit
// database is enabled and database.auto_migrate is set.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/church-dashboard/church-dashboard/internal/api"
	"github.com/church-dashboard/church-dashboard/internal/audit"
	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/backend"
	"github.com/church-dashboard/church-dashboard/internal/config"
	"github.com/church-dashboard/church-dashboard/internal/crypto"
	"github.com/church-dashboard/church-dashboard/internal/db"
	"github.com/church-dashboard/church-dashboard/internal/db/repositories"
	"github.com/church-dashboard/church-dashboard/internal/jobs"
	"github.com/church-dashboard/church-dashboard/internal/menu"
	"github.com/church-dashboard/church-dashboard/internal/middleware"
	"github.com/church-dashboard/church-dashboard/internal/session"
	"github.com/church-dashboard/church-dashboard/internal/telemetry"
)

const (
	version = "0.1.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("Church Dashboard v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|version>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cipher, err := crypto.CipherFromSecret(cfg.Session.Secret, cfg.Session.SaltBytes(), cfg.Session.Iterations)
	if err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}
	store := session.NewStore(cipher, session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Domain:     cfg.Session.Domain,
		Secure:     cfg.Session.Secure,
		SameSite:   cfg.Session.SameSiteMode(),
		LoginPath:  cfg.Routes.Login,
	})

	registry := auth.NewRegistry(cfg.Access.EffectiveRules()...)
	evaluator := auth.NewEvaluator(registry, cfg.Access.AdminRole)
	slog.Info("route permission table loaded", "rules", registry.Len(), "admin_role", evaluator.AdminRole())

	deps := api.Dependencies{
		Config:    cfg,
		Version:   version,
		Store:     store,
		Evaluator: evaluator,
		Menu:      menu.NewBuilder(evaluator, cfg.Menu.Items, cfg.Menu.Categories),
		Backend:   backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout),
	}

	// Access audit: optional database plus optional shippers.
	var auditStore audit.Store
	if cfg.Database.Enabled {
		database, repo, err := openAuditDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		deps.DB = database
		deps.AuditRepo = repo
		auditStore = repo

		retention := jobs.NewAuditRetentionJob(repo, &cfg.Audit)
		go retention.Start(ctx)
		defer retention.Stop()
	}

	var shipper audit.Shipper
	if cfg.Audit.Enabled {
		ms, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			return fmt.Errorf("failed to configure audit shippers: %w", err)
		}
		defer ms.Close()
		if ms.Len() > 0 {
			shipper = ms
		}
		deps.Recorder = audit.NewRecorder(auditStore, shipper, cfg.Access.AuditGrants)
	}

	if cfg.Security.RateLimiting.Enabled {
		limiter, stop := newLoginLimiter(cfg)
		defer stop()
		deps.Limiter = limiter
	}

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(cfg.Telemetry.Metrics.Port)
	}

	router := api.NewRouter(deps)

	server := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"backend", cfg.Backend.BaseURL,
			"audit_db", cfg.Database.Enabled,
		)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// openAuditDatabase connects to the audit database, applies migrations when enabled and
// starts the pool statistics collector.
func openAuditDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, *repositories.AccessAuditRepository, error) {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to audit database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(database, "up"); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if v, dirty, err := db.GetMigrationVersion(database); err != nil {
			slog.Warn("failed to get migration version", "error", err)
		} else {
			slog.Info("database schema version", "version", v, "dirty", dirty)
		}
	}

	telemetry.StartDBStatsCollector(ctx, database, 0)
	return database, repositories.NewAccessAuditRepository(db.Wrap(database)), nil
}

// newLoginLimiter builds the configured login limiter and a function that releases it.
func newLoginLimiter(cfg *config.Config) (middleware.Limiter, func()) {
	rlCfg := middleware.LoginRateLimitConfig(cfg.Security.RateLimiting)
	if cfg.Security.RateLimiting.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		slog.Info("login rate limiting uses redis", "addr", cfg.Redis.Addr)
		return middleware.NewRedisLimiter(rdb, rlCfg), func() { _ = rdb.Close() }
	}
	rl := middleware.NewRateLimiter(rlCfg)
	return rl, rl.Stop
}

// startMetricsServer serves Prometheus metrics on a dedicated port so the scrape path
// stays off the public listener.
func startMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("starting Prometheus metrics server", "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if direction != "version" {
		log.Printf("Running migrations: %s", direction)
		if err := db.RunMigrations(database, direction); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Current schema version: %d (dirty: %v)", v, dirty)
	return nil
}
