package config

import "github.com/teranos/OPTIX/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 8090)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Pulse workers: 0 = no background workers, negative = invalid
	if c.Pulse.Workers < 0 {
		return errors.Newf("pulse.workers must be >= 0, got %d", c.Pulse.Workers)
	}

	// Intervals: 0 = use default, negative = invalid
	if c.Pulse.PollIntervalSeconds < 0 {
		return errors.Newf("pulse.poll_interval_seconds must be >= 0, got %d", c.Pulse.PollIntervalSeconds)
	}
	if c.Pulse.StaleAfterMinutes < 0 {
		return errors.Newf("pulse.stale_after_minutes must be >= 0, got %d", c.Pulse.StaleAfterMinutes)
	}
	if c.Cache.FetchIntervalSeconds < 0 {
		return errors.Newf("cache.fetch_interval_seconds must be >= 0, got %d", c.Cache.FetchIntervalSeconds)
	}

	// Graph file cap: 0 = use default, negative = invalid
	if c.Graph.MaxFileKB < 0 {
		return errors.Newf("graph.max_file_kb must be >= 0, got %d", c.Graph.MaxFileKB)
	}

	// History window: 0 = use default, negative = invalid
	if c.History.DefaultWindowDays < 0 {
		return errors.Newf("history.default_window_days must be >= 0, got %d", c.History.DefaultWindowDays)
	}

	// Hotspot knobs: 0 = use default, negative = invalid
	if c.Hotspots.WindowWeeks < 0 {
		return errors.Newf("hotspots.window_weeks must be >= 0, got %d", c.Hotspots.WindowWeeks)
	}
	if c.Hotspots.Threshold < 0 {
		return errors.Newf("hotspots.threshold must be >= 0, got %f", c.Hotspots.Threshold)
	}

	return nil
}
