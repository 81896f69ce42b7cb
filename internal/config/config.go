package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Groups      GroupsConfig
	Redirects   RedirectsConfig
	I18n        I18nConfig
	Email       EmailConfig
	Jobs        JobsConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST"             envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT"             envDefault:"8080"`
	BaseURL         string        `env:"SERVER_BASE_URL"         envDefault:"http://localhost:8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	URL            string `env:"DATABASE_URL"`
	MaxConnections int    `env:"DATABASE_MAX_CONNECTIONS"      envDefault:"25"`
	MaxIdle        int    `env:"DATABASE_MAX_IDLE_CONNECTIONS" envDefault:"5"`
}

type AuthConfig struct {
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"720h"`
	CookieSecure  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	CSRFKey       string        `env:"CSRF_KEY"`
}

type RateLimitConfig struct {
	PublicPerMinute        int           `env:"RATE_LIMIT_PUBLIC"              envDefault:"60"`
	AuthenticatedPerMinute int           `env:"RATE_LIMIT_AUTHENTICATED"       envDefault:"300"`
	GroupCreateLimit       int           `env:"RATE_LIMIT_GROUP_CREATE"        envDefault:"10"`
	GroupCreateWindow      time.Duration `env:"RATE_LIMIT_GROUP_CREATE_WINDOW" envDefault:"1h"`
	CounterRetention       time.Duration `env:"RATE_LIMIT_RETENTION"           envDefault:"48h"`

	// X-Forwarded-For is only honored from these networks.
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`
}

type CORSConfig struct {
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AllowAllOrigins bool     `env:"CORS_ALLOW_ALL"       envDefault:"false"`
}

type GroupsConfig struct {
	MaxMembers int `env:"GROUPS_MAX_MEMBERS" envDefault:"50"`
}

type RedirectsConfig struct {
	MaxHops int `env:"REDIRECTS_MAX_HOPS" envDefault:"16"`
}

type I18nConfig struct {
	DefaultLocale string `env:"I18N_DEFAULT_LOCALE" envDefault:"es"`
}

type EmailConfig struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"EMAIL_FROM" envDefault:"RunGoMX <no-reply@rungomx.com>"`
}

type JobsConfig struct {
	Workers            int           `env:"JOBS_WORKERS"              envDefault:"4"`
	AuditRetention     time.Duration `env:"AUDIT_RETENTION"           envDefault:"8760h"`
	CleanupInterval    time.Duration `env:"JOBS_CLEANUP_INTERVAL"     envDefault:"1h"`
	RetryNotifications int           `env:"JOB_RETRY_NOTIFICATIONS"   envDefault:"5"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type TracingConfig struct {
	Enabled      bool    `env:"TRACING_ENABLED"       envDefault:"false"`
	Exporter     string  `env:"TRACING_EXPORTER"      envDefault:"otlp"`
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRatio  float64 `env:"TRACING_SAMPLE_RATIO"  envDefault:"1.0"`
	ServiceName  string  `env:"OTEL_SERVICE_NAME"     envDefault:"rungomx-server"`
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(cfg.Auth.SessionSecret) < 32 {
		return Config{}, fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if cfg.IsProduction() && cfg.Auth.CSRFKey == "" {
		return Config{}, fmt.Errorf("CSRF_KEY is required in production")
	}
	if cfg.IsProduction() && cfg.CORS.AllowAllOrigins {
		return Config{}, fmt.Errorf("CORS_ALLOW_ALL cannot be enabled in production")
	}
	if cfg.Groups.MaxMembers < 2 {
		return Config{}, fmt.Errorf("GROUPS_MAX_MEMBERS must be at least 2, got %d", cfg.Groups.MaxMembers)
	}
	if cfg.Redirects.MaxHops < 1 {
		return Config{}, fmt.Errorf("REDIRECTS_MAX_HOPS must be positive, got %d", cfg.Redirects.MaxHops)
	}
	return cfg, nil
}

// LoadDatabase parses only the database settings, for tooling commands that
// never serve traffic.
func LoadDatabase() (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := env.Parse(&cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.URL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}
