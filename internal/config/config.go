// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the root configuration for the compression service.
type Config struct {
	Server      ServerConfig
	Upload      UploadConfig
	Ghostscript GhostscriptConfig
	Database    DatabaseConfig
	Jobs        JobsConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

// ServerConfig controls the listening socket. Port stays textual so a
// malformed value surfaces as a bind error, matching the launcher contract.
type ServerConfig struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port string `env:"PORT,default=5000"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// UploadConfig bounds incoming files.
type UploadConfig struct {
	MaxSizeMB int64 `env:"MAX_UPLOAD_MB,default=200"`
}

// MaxBytes returns the upload cap in bytes.
func (c UploadConfig) MaxBytes() int64 {
	return c.MaxSizeMB * 1024 * 1024
}

// GhostscriptConfig controls how the native compressor is located and run.
type GhostscriptConfig struct {
	// Binary, when set, bypasses PATH discovery.
	Binary         string `env:"GS_BINARY"`
	TimeoutSeconds int    `env:"GS_TIMEOUT_SECONDS,default=60"`
}

// Timeout returns the per-invocation deadline.
func (c GhostscriptConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig selects the job store backend. An empty DSN keeps job
// history in memory.
type DatabaseConfig struct {
	DSN string `env:"DATABASE_DSN"`
}

// JobsConfig controls job history retention.
type JobsConfig struct {
	Retention time.Duration `env:"JOB_RETENTION,default=24h"`
}

// RateLimitConfig throttles clients. Zero RPS disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=0"`
	Burst             int `env:"RATE_LIMIT_BURST,default=10"`
}

// LoggingConfig mirrors pkg/logger settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	Origins string `env:"CORS_ORIGINS,default=https://zenpdf.vercel.app"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	// An exported-but-empty PORT means "use the default", same as unset.
	if strings.TrimSpace(cfg.Server.Port) == "" {
		cfg.Server.Port = "5000"
	}
	if cfg.Upload.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if cfg.Ghostscript.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("GS_TIMEOUT_SECONDS must be positive")
	}

	return &cfg, nil
}

// LoadCORS reads the CORS allowlist from the environment.
func LoadCORS() ([]string, error) {
	var cfg CORSConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return splitCSV(cfg.Origins), nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
