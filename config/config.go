package config

import (
	"fmt"
	"time"
)

// Config represents the core OPTIX configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Cache    CacheConfig    `mapstructure:"cache" toml:"cache"`
	Pulse    PulseConfig    `mapstructure:"pulse" toml:"pulse"`
	Graph    GraphConfig    `mapstructure:"graph" toml:"graph"`
	History  HistoryConfig  `mapstructure:"history" toml:"history"`
	Hotspots HotspotsConfig `mapstructure:"hotspots" toml:"hotspots"`
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" toml:"logging"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// CacheConfig configures the on-disk repository cache
type CacheConfig struct {
	Dir                  string `mapstructure:"dir" toml:"dir"`
	FetchIntervalSeconds int    `mapstructure:"fetch_interval_seconds" toml:"fetch_interval_seconds"` // Per-entry fetch rate floor (default: 30)
}

// PulseConfig configures the async job worker pool
type PulseConfig struct {
	Workers             int `mapstructure:"workers" toml:"workers"`                             // Concurrent job workers (default: 2)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" toml:"poll_interval_seconds"` // Queue poll cadence (default: 5)
	StaleAfterMinutes   int `mapstructure:"stale_after_minutes" toml:"stale_after_minutes"`     // Lease age treated as orphaned (default: 30)
}

// GraphConfig configures dependency graph extraction
type GraphConfig struct {
	MaxFileKB int `mapstructure:"max_file_kb" toml:"max_file_kb"` // Per-file read cap in KiB (default: 500)
}

// HistoryConfig configures git history mining
type HistoryConfig struct {
	DefaultWindowDays int `mapstructure:"default_window_days" toml:"default_window_days"` // Mining window when a job carries none (default: 90)
}

// HotspotsConfig configures churn hotspot detection
type HotspotsConfig struct {
	WindowWeeks int     `mapstructure:"window_weeks" toml:"window_weeks"` // Weeks of churn considered (default: 12)
	Threshold   float64 `mapstructure:"threshold" toml:"threshold"`       // Churn score above which a file is hot (default: 25.0)
}

// ServerConfig configures the OPTIX web server.
//
// Git credentials are deliberately absent from configuration: they ride
// on each request and are never read from or written to disk.
type ServerConfig struct {
	Port           *int     `mapstructure:"port" toml:"port"` // Server port: nil = default 8090, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	JSON bool `mapstructure:"json" toml:"json"` // Emit JSON log lines instead of the console encoder
}

// DefaultServerPort is used when server.port is omitted.
const DefaultServerPort = 8090

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// DatabasePath returns the configured database path
func (c *Config) DatabasePath() string {
	if c.Database.Path == "" {
		return userPath("optix.db")
	}
	return c.Database.Path
}

// CacheDir returns the repository cache root
func (c *Config) CacheDir() string {
	if c.Cache.Dir == "" {
		return userPath("repos")
	}
	return c.Cache.Dir
}

// CacheFetchInterval returns the per-entry remote fetch rate floor
func (c *Config) CacheFetchInterval() time.Duration {
	if c.Cache.FetchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Cache.FetchIntervalSeconds) * time.Second
}

// PulsePollInterval returns how often each worker checks for new jobs
func (c *Config) PulsePollInterval() time.Duration {
	if c.Pulse.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Pulse.PollIntervalSeconds) * time.Second
}

// PulseStaleAfter returns the lease age at which a processing job is
// considered orphaned and eligible for requeue
func (c *Config) PulseStaleAfter() time.Duration {
	if c.Pulse.StaleAfterMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Pulse.StaleAfterMinutes) * time.Minute
}

// ServerPort returns the configured HTTP port
func (c *Config) ServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// ServerAllowedOrigins returns the allowed CORS origins
func (c *Config) ServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return defaultAllowedOrigins()
	}
	return c.Server.AllowedOrigins
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Server: {Port: %d}, Pulse: {Workers: %d}}",
		c.DatabasePath(), c.ServerPort(), c.Pulse.Workers)
}
