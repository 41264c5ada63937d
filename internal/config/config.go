// Package config loads paneltrack settings from the environment.
// Values are read once at startup, defaulted, and validated so that a bad
// deployment fails before any database work starts.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Jobs     JobConfig
	Snapshot SnapshotConfig
	Operator OperatorConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the connection string of the target database (required).
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// AdminDatabase is the maintenance database used to create the target
	// database when it does not exist yet.
	AdminDatabase string `env:"DB_ADMIN_DATABASE" default:"postgres"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// JobConfig bounds the background import and export jobs.
type JobConfig struct {
	MaxConcurrent int           `env:"JOB_MAX_CONCURRENT" default:"2"`
	MaxWaitTime   time.Duration `env:"JOB_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"JOB_TIMEOUT" default:"10m"`

	// MaxFileSize caps uploaded import files in bytes (default: 50MB).
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// ExportDir is the only directory API export jobs write into.
	ExportDir string `env:"EXPORT_DIR" default:"exports"`
}

// SnapshotConfig controls scheduled standalone snapshots.
type SnapshotConfig struct {
	// Schedule is a five-field cron expression. Empty disables the job.
	Schedule string `env:"SNAPSHOT_SCHEDULE"`
	Dir      string `env:"SNAPSHOT_DIR" default:"snapshots"`
}

// OperatorConfig overrides the user and host recorded in the system log.
// When empty the OS user and hostname are used.
type OperatorConfig struct {
	Name string `env:"OPERATOR_NAME"`
	Host string `env:"OPERATOR_HOST"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
	Burst             int  `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	RequireAPIKey  bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys        []string `env:"API_KEYS"`

	// AdminKeys authorize destructive calls (batch delete, log clear).
	AdminKeys []string `env:"ADMIN_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
