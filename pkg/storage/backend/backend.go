// Package backend opens a storage.Driver from configuration. It is the one
// place that knows the mapping from config values to concrete drivers.
package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/poucet/noema-sub001/pkg/config"
	"github.com/poucet/noema-sub001/pkg/storage"
	"github.com/poucet/noema-sub001/pkg/storage/inmemory"
	"github.com/poucet/noema-sub001/pkg/storage/postgres"
	"github.com/poucet/noema-sub001/pkg/storage/sqlite"
)

// Open returns the driver selected by cfg.Storage.Backend. A relative SQLite
// path is resolved against baseDir (the .noema/ directory) so every command
// lands on the same database file regardless of working directory.
func Open(ctx context.Context, cfg *config.Config, baseDir string) (storage.Driver, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return inmemory.NewDriver(), nil

	case "sqlite", "":
		path := cfg.Storage.SQLitePath
		if path != ":memory:" && !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return sqlite.New(path)

	case "postgres":
		if cfg.Storage.PostgresURL == "" {
			return nil, fmt.Errorf("storage backend %q requires storage.postgres_url", cfg.Storage.Backend)
		}
		return postgres.New(ctx, cfg.Storage.PostgresURL)

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}
