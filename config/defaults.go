package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigFileName is the file OPTIX looks for in the project tree,
// ~/.optix, and /etc/optix.
const ConfigFileName = "optix.toml"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", userPath("optix.db"))

	// Repository cache defaults
	v.SetDefault("cache.dir", userPath("repos"))
	v.SetDefault("cache.fetch_interval_seconds", 30) // Floor between remote fetches per entry

	// Pulse (async job infrastructure) defaults
	v.SetDefault("pulse.workers", 2)
	v.SetDefault("pulse.poll_interval_seconds", 5)
	v.SetDefault("pulse.stale_after_minutes", 30)

	// Graph extraction defaults
	v.SetDefault("graph.max_file_kb", 500)

	// History mining defaults
	v.SetDefault("history.default_window_days", 90)

	// Hotspot detection defaults
	v.SetDefault("hotspots.window_weeks", 12)
	v.SetDefault("hotspots.threshold", 25.0)

	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins())

	// Logging defaults
	v.SetDefault("logging.json", false)
}

// BindEnvVars explicitly binds path-like configuration to environment
// variables so they work even before AutomaticEnv kicks in
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "OPTIX_DATABASE_PATH")
	v.BindEnv("cache.dir", "OPTIX_CACHE_DIR")
}

// UserConfigPath returns the path of the per-user config file,
// ~/.optix/optix.toml
func UserConfigPath() string {
	return userPath(ConfigFileName)
}

// userPath joins parts under ~/.optix, falling back to a relative path
// when the home directory cannot be resolved
func userPath(parts ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(parts...)
	}
	return filepath.Join(append([]string{home, ".optix"}, parts...)...)
}

func defaultAllowedOrigins() []string {
	return []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	}
}
