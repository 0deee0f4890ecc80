// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/poucet/noema-sub001/pkg/storage"
	"github.com/poucet/noema-sub001/pkg/storage/sqldriver"
)

// Driver implements storage.Driver using SQLite via the shared SQL driver.
type Driver struct {
	*sqldriver.Driver
}

var _ storage.Driver = (*Driver)(nil)

// New opens a SQLite database and migrates the schema. The dbPath can be a
// file path or ":memory:" for an in-memory database.
func New(dbPath string) (*Driver, error) {
	// The github.com/mattn/go-sqlite3 driver registers as "sqlite3".
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite-specific pragmas
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	drv := sqldriver.New(db, sqldriver.DialectSQLite)
	if err := drv.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{Driver: drv}, nil
}
