// Package config loads and validates the dashboard gateway configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the CHD_ prefix (e.g., CHD_BACKEND_BASE_URL
// overrides backend.base_url in the YAML).
//
// The session secret is read from SESSION_SECRET without the prefix because it is
// usually injected by infrastructure tooling (Kubernetes secrets, Vault agent) under a
// generic name.
package config

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/church-dashboard/church-dashboard/internal/auth"
	"github.com/church-dashboard/church-dashboard/internal/menu"
)

// MinSecretLength is the shortest accepted session secret.
const MinSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Access    AccessConfig    `mapstructure:"access"`
	Routes    RoutesConfig    `mapstructure:"routes"`
	Menu      MenuConfig      `mapstructure:"menu"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	StaticDir    string        `mapstructure:"static_dir"`
}

// SessionConfig holds the session cookie settings.
type SessionConfig struct {
	// Secret is a 32-byte key (hex or base64) or a passphrase stretched with PBKDF2.
	Secret     string        `mapstructure:"secret"`
	Salt       string        `mapstructure:"salt"`
	Iterations int           `mapstructure:"iterations"`
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Domain     string        `mapstructure:"domain"`
	Secure     bool          `mapstructure:"secure"`
	SameSite   string        `mapstructure:"same_site"`
}

// SaltBytes returns the configured PBKDF2 salt. A hex salt is decoded, anything else
// is used verbatim.
func (s *SessionConfig) SaltBytes() []byte {
	if b, err := hex.DecodeString(s.Salt); err == nil && len(b) > 0 {
		return b
	}
	return []byte(s.Salt)
}

// SameSiteMode maps the same_site setting to net/http. Unknown values select Lax.
func (s *SessionConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(s.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// BackendConfig points at the church-management REST API.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AccessConfig holds the route permission table and administrator role.
type AccessConfig struct {
	AdminRole string      `mapstructure:"admin_role"`
	Rules     []auth.Rule `mapstructure:"rules"`
	PIC       PICConfig   `mapstructure:"pic"`
	// AuditGrants records granted decisions too; denials are always recorded.
	AuditGrants bool `mapstructure:"audit_grants"`
}

// EffectiveRules returns the configured rules, or the built-in table when none are set.
func (a *AccessConfig) EffectiveRules() []auth.Rule {
	if len(a.Rules) > 0 {
		return a.Rules
	}
	return auth.DefaultRules()
}

// PICConfig configures the PIC guard applied to a dashboard subtree.
type PICConfig struct {
	Prefix        string   `mapstructure:"prefix"`
	RelevantRoles []string `mapstructure:"relevant_roles"`
	ExemptPaths   []string `mapstructure:"exempt_paths"`
}

// RoutesConfig names the redirect targets used by the guards.
type RoutesConfig struct {
	Login    string `mapstructure:"login"`
	NotFound string `mapstructure:"not_found"`
	Home     string `mapstructure:"home"`
}

// MenuConfig optionally replaces the built-in navigation menu.
type MenuConfig struct {
	Items      []menu.Item     `mapstructure:"items"`
	Categories []menu.Category `mapstructure:"categories"`
}

// DatabaseConfig holds the access audit database connection configuration
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
}

// RedisConfig holds the redis connection used by the distributed rate limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	Headers      HeadersConfig      `mapstructure:"headers"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration. Every origin is answered with credentials, so
// origins are listed literally; "*" is rejected by Validate.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// HeadersConfig feeds the page Content-Security-Policy.
type HeadersConfig struct {
	// ImageOrigins are extra img-src origins, e.g. the backend's avatar host.
	ImageOrigins []string `mapstructure:"image_origins"`
	// AssetOrigins are extra script-src, style-src and font-src origins (a CDN).
	AssetOrigins []string `mapstructure:"asset_origins"`
}

// RateLimitingConfig holds login rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// Backend is "memory" (per process) or "redis" (shared across replicas).
	Backend string `mapstructure:"backend"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuditConfig holds access audit configuration
type AuditConfig struct {
	Enabled  bool                 `mapstructure:"enabled"`
	Shippers []AuditShipperConfig `mapstructure:"shippers"`
	// RetentionDays bounds how long stored decisions are kept; 0 keeps them forever.
	RetentionDays        int `mapstructure:"retention_days"`
	CleanupIntervalHours int `mapstructure:"cleanup_interval_hours"`
}

// AuditShipperConfig holds configuration for a single audit shipper
type AuditShipperConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Type    string              `mapstructure:"type"` // webhook, file
	Webhook *AuditWebhookConfig `mapstructure:"webhook"`
	File    *AuditFileConfig    `mapstructure:"file"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	TimeoutSecs int               `mapstructure:"timeout_secs"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path string `mapstructure:"path"`
}

// bindEnvVars explicitly binds environment variables to config keys, since
// AutomaticEnv() alone does not reach nested keys during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.read_timeout",
		"server.write_timeout",
		"server.static_dir",

		// Session (secret is bound separately)
		"session.salt",
		"session.iterations",
		"session.cookie_name",
		"session.ttl",
		"session.domain",
		"session.secure",
		"session.same_site",

		// Backend
		"backend.base_url",
		"backend.timeout",

		// Access
		"access.admin_role",
		"access.audit_grants",
		"access.pic.prefix",
		"access.pic.relevant_roles",
		"access.pic.exempt_paths",

		// Routes
		"routes.login",
		"routes.not_found",
		"routes.home",

		// Database
		"database.enabled",
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",
		"database.auto_migrate",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.headers.image_origins",
		"security.headers.asset_origins",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.backend",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.port",

		// Audit
		"audit.enabled",
		"audit.retention_days",
		"audit.cleanup_interval_hours",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	if err := v.BindEnv("session.secret", "SESSION_SECRET"); err != nil {
		return fmt.Errorf("failed to bind env var %q: %w", "SESSION_SECRET", err)
	}
	return nil
}

// Load loads configuration from file and environment variables. An empty configPath
// falls back to CONFIG_PATH and then to config.yaml in the usual locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/church-dashboard")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Session.Secret = expandEnv(cfg.Session.Secret)
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.static_dir", "")

	// Session defaults
	v.SetDefault("session.salt", "church-dashboard-session")
	v.SetDefault("session.iterations", 100000)
	v.SetDefault("session.cookie_name", "userData")
	v.SetDefault("session.ttl", "72h")
	v.SetDefault("session.secure", true)
	v.SetDefault("session.same_site", "lax")

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:3000/api")
	v.SetDefault("backend.timeout", "15s")

	// Access defaults
	v.SetDefault("access.admin_role", auth.AdminRole)
	v.SetDefault("access.audit_grants", false)
	v.SetDefault("access.pic.prefix", "/dashboard/pelayanan")
	v.SetDefault("access.pic.relevant_roles", []string{"musik", "multimedia", "usher"})
	v.SetDefault("access.pic.exempt_paths", []string{"/dashboard/pelayanan/jadwal"})

	// Route defaults
	v.SetDefault("routes.login", "/login")
	v.SetDefault("routes.not_found", "/not-found")
	v.SetDefault("routes.home", "/dashboard")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "church_dashboard")
	v.SetDefault("database.user", "dashboard")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_idle_connections", 2)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.headers.image_origins", []string{})
	v.SetDefault("security.headers.asset_origins", []string{})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 10)
	v.SetDefault("security.rate_limiting.burst", 5)
	v.SetDefault("security.rate_limiting.backend", "memory")
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "church-dashboard")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.port", 9090)

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.retention_days", 90)
	v.SetDefault("audit.cleanup_interval_hours", 24)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Session.Secret) < MinSecretLength {
		return fmt.Errorf("session.secret (SESSION_SECRET) must be at least %d characters", MinSecretLength)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}

	if c.Routes.Login == "" || c.Routes.NotFound == "" {
		return fmt.Errorf("routes.login and routes.not_found are required")
	}

	for i, r := range c.Access.Rules {
		if r.RoutePattern == "" {
			return fmt.Errorf("access.rules[%d]: route_pattern is required", i)
		}
		if len(auth.NewRoleSet(r.AllowedRoles...)) == 0 {
			return fmt.Errorf("access.rules[%d] (%s): allowed_roles is empty", i, r.RoutePattern)
		}
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}

	for _, o := range c.Security.CORS.AllowedOrigins {
		if o == "*" {
			return fmt.Errorf("security.cors.allowed_origins: \"*\" cannot be combined with credentialed requests, list each origin")
		}
		if !isOrigin(o) {
			return fmt.Errorf("security.cors.allowed_origins: %q is not an origin such as https://app.example.org", o)
		}
	}
	for _, list := range []struct {
		key     string
		origins []string
	}{
		{"security.headers.image_origins", c.Security.Headers.ImageOrigins},
		{"security.headers.asset_origins", c.Security.Headers.AssetOrigins},
	} {
		for _, o := range list.origins {
			if !isOrigin(o) {
				return fmt.Errorf("%s: %q is not an origin such as https://cdn.example.org", list.key, o)
			}
		}
	}

	if c.Security.RateLimiting.Enabled {
		switch c.Security.RateLimiting.Backend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				return fmt.Errorf("redis.addr is required when rate limiting uses the redis backend")
			}
		default:
			return fmt.Errorf("invalid rate limiting backend: %s (must be memory or redis)", c.Security.RateLimiting.Backend)
		}
		if c.Security.RateLimiting.RequestsPerMinute < 1 {
			return fmt.Errorf("security.rate_limiting.requests_per_minute must be positive")
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative")
	}

	for i, s := range c.Audit.Shippers {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "webhook":
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("audit.shippers[%d]: webhook.url is required", i)
			}
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("audit.shippers[%d]: file.path is required", i)
			}
		default:
			return fmt.Errorf("audit.shippers[%d]: unknown type %q (must be webhook or file)", i, s.Type)
		}
	}

	return nil
}

// isOrigin reports whether o is a bare http(s) origin: scheme and host, nothing else.
func isOrigin(o string) bool {
	u, err := url.Parse(o)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == "" && u.User == nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
