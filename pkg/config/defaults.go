package config

import "time"

const (
	defaultStorageBackend = "sqlite"
	defaultSQLitePath     = "noema.db"

	defaultEventsBackend = "nop"
	defaultEventsTopic   = "noema.events"

	defaultGCInterval = time.Hour
	defaultGCGrace    = 24 * time.Hour

	defaultLogFormat = "text"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. SQLitePath is
// relative to the resolved .noema/ directory.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Backend:    defaultStorageBackend,
			SQLitePath: defaultSQLitePath,
		},
		Events: EventStreamConfig{
			Backend: defaultEventsBackend,
			Topic:   defaultEventsTopic,
		},
		GC: GCConfig{
			Interval: defaultGCInterval.String(),
			Grace:    defaultGCGrace.String(),
		},
		Log: LogConfig{
			Format: defaultLogFormat,
		},
	}
}
