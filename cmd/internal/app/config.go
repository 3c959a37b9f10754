package app

import (
	"time"

	"portal/cmd/internal/envx"
)

// Config contains the server runtime configuration loaded from environment
// variables. Extension settings live in ext.Config.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string
	Env       string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, PORTAL_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool

	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// Production reports whether the process runs with production guardrails.
func (c Config) Production() bool {
	return c.Env == "production"
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  envx.String("PORTAL_HTTP_ADDR", "0.0.0.0:5000"),
		LogLevel:  envx.String("PORTAL_LOG_LEVEL", "info"),
		LogFormat: envx.String("PORTAL_LOG_FORMAT", "json"),
		Env:       envx.String("PORTAL_ENV", "development"),

		ReadHeaderTimeout: envx.Duration("PORTAL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       envx.Duration("PORTAL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      envx.Duration("PORTAL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       envx.Duration("PORTAL_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   envx.Duration("PORTAL_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: envx.Int("PORTAL_HTTP_MAX_HEADER_BYTES", 1<<20),

		ReadinessRequireDB: envx.Bool("PORTAL_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: envx.Bool("PORTAL_REQUIRE_TOKEN_HMAC", false),

		TrustProxy: envx.Bool("PORTAL_TRUST_PROXY", false),

		CORSAllowedOrigins:   envx.List("PORTAL_CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:*"}),
		CORSAllowCredentials: envx.Bool("PORTAL_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    envx.Int("PORTAL_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: envx.Bool("PORTAL_METRICS_ENABLED", true),
	}
}
