package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent noema configuration stored as config.toml
// in the .noema/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int               `toml:"version"`
	Storage StorageConfig     `toml:"storage"`
	Events  EventStreamConfig `toml:"events"`
	GC      GCConfig          `toml:"gc"`
	Log     LogConfig         `toml:"log"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of "sqlite", "postgres", or "memory".
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// EventStreamConfig selects where mutation events go.
type EventStreamConfig struct {
	// Backend is one of "nop", "memory", or "kafka".
	Backend string   `toml:"backend,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// GCConfig holds content sweep settings.
type GCConfig struct {
	Interval string `toml:"interval,omitempty"`
	Grace    string `toml:"grace,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug  bool   `toml:"debug,omitempty"`
	Format string `toml:"format,omitempty"`
}

// GCInterval parses the sweep interval, falling back to the default on a
// malformed or empty value.
func (c *Config) GCInterval() time.Duration {
	d, err := time.ParseDuration(c.GC.Interval)
	if err != nil || d <= 0 {
		return defaultGCInterval
	}
	return d
}

// GCGrace parses the sweep grace window, falling back to the default on a
// malformed or empty value.
func (c *Config) GCGrace() time.Duration {
	d, err := time.ParseDuration(c.GC.Grace)
	if err != nil || d <= 0 {
		return defaultGCGrace
	}
	return d
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.backend": {
		get: func(c *Config) string { return c.Storage.Backend },
		set: func(c *Config, v string) error { c.Storage.Backend = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"events.backend": {
		get: func(c *Config) string { return c.Events.Backend },
		set: func(c *Config, v string) error { c.Events.Backend = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Events.Brokers = append(c.Events.Brokers, b)
				}
			}
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"gc.interval": {
		get: func(c *Config) string { return c.GC.Interval },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for gc.interval: %w", err)
			}
			c.GC.Interval = v
			return nil
		},
	},
	"gc.grace": {
		get: func(c *Config) string { return c.GC.Grace },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for gc.grace: %w", err)
			}
			c.GC.Grace = v
			return nil
		},
	},
	"log.debug": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Debug) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.debug: %w", err)
			}
			c.Log.Debug = b
			return nil
		},
	},
	"log.format": {
		get: func(c *Config) string { return c.Log.Format },
		set: func(c *Config, v string) error { c.Log.Format = v; return nil },
	},
}
