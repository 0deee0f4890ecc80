package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on both "noema status" and "noema gc").
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags
// to avoid typos or drift from one command to another.
const (
	FlagStorageBackend = "storage-backend"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagEventsBackend  = "events-backend"
	FlagBrokers        = "brokers"
	FlagTopic          = "topic"
	FlagGCInterval     = "gc-interval"
	FlagGCGrace        = "gc-grace"
)

// DefaultFlagSet returns the standard flag registry shared by the noema
// subcommands.
func DefaultFlagSet() FlagSet {
	return FlagSet{
		FlagStorageBackend: {
			Name:        "storage",
			ViperKey:    "storage.backend",
			Description: "storage backend (sqlite, postgres, memory)",
		},
		FlagSQLite: {
			Name:        "sqlite",
			ViperKey:    "storage.sqlite_path",
			Description: "path to the SQLite database file",
		},
		FlagPostgres: {
			Name:        "postgres",
			ViperKey:    "storage.postgres_url",
			Description: "PostgreSQL connection string",
		},
		FlagEventsBackend: {
			Name:        "events",
			ViperKey:    "events.backend",
			Description: "event stream backend (nop, memory, kafka)",
		},
		FlagBrokers: {
			Name:        "brokers",
			ViperKey:    "events.brokers",
			Description: "comma-separated Kafka broker addresses",
		},
		FlagTopic: {
			Name:        "topic",
			ViperKey:    "events.topic",
			Description: "Kafka topic for mutation events",
		},
		FlagGCInterval: {
			Name:        "gc-interval",
			ViperKey:    "gc.interval",
			Description: "interval between content sweeps (e.g. 1h)",
		},
		FlagGCGrace: {
			Name:        "gc-grace",
			ViperKey:    "gc.grace",
			Description: "age an unreferenced block must reach before it is swept (e.g. 24h)",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
