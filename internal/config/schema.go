// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for garmin-mcp.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SolanceLab/garmin-mcp/internal/gateway"
	"github.com/SolanceLab/garmin-mcp/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	Garmin    GarminConfig     `yaml:"garmin"`
	Server    ServerConfig     `yaml:"server"`
	Gateway   gateway.Config   `yaml:"gateway"`
	Audit     AuditConfig      `yaml:"audit"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// GarminConfig holds the Garmin Connect account settings.
type GarminConfig struct {
	// Email and Password are the credential fallback used when no saved
	// tokens work. Usually supplied via GARMIN_EMAIL / GARMIN_PASSWORD.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// TokenStore is the directory token files persist in.
	TokenStore string `yaml:"token_store"`

	// UserProfilePK is the numeric profile key menstrual calendar writes
	// require. Zero leaves it unset.
	UserProfilePK int64 `yaml:"user_profile_pk"`

	// Timeout bounds each Garmin HTTP request. Zero keeps the client
	// default.
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit caps outbound Garmin requests per second. Zero disables
	// the limiter.
	RateLimit float64 `yaml:"rate_limit"`
}

// ServerConfig selects how the MCP server is served.
type ServerConfig struct {
	// Transport is "stdio" or "http".
	Transport string `yaml:"transport"`

	// Addr is the listen address when transport is "http".
	Addr string `yaml:"addr"`
}

// AuditConfig controls the sqlite invocation log.
type AuditConfig struct {
	// Path of the database file. Empty disables the audit log.
	Path string `yaml:"path"`

	// RetentionDays is how long entries survive before pruning.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a five-field cron expression for the prune job.
	PruneSchedule string `yaml:"prune_schedule"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Transport == "" {
		c.Server.Transport = "stdio"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8280"
	}
	if c.Garmin.TokenStore == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Garmin.TokenStore = filepath.Join(home, ".garminconnect")
		}
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 90
	}
	if c.Audit.PruneSchedule == "" {
		c.Audit.PruneSchedule = "0 3 * * *"
	}
}

// Level converts LogLevel to a slog.Level. Unknown values read as info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
