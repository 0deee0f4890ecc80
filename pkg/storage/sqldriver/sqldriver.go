// Package sqldriver provides the shared database/sql implementation of
// storage.Driver. It is database-agnostic up to a dialect value and is
// embedded by the sqlite and postgres drivers, which only differ in how the
// connection is opened and which placeholder and column types apply.
package sqldriver

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/poucet/noema-sub001/pkg/storage"
)

// Dialect selects placeholder style and the few divergent column types.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Driver implements storage.Driver over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	Dialect Dialect
}

// New wraps an open connection. Callers run Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Driver {
	return &Driver{
		DB:      db,
		Dialect: dialect,
	}
}

// Ping verifies the backend is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return storage.Unavailable("ping", d.DB.PingContext(ctx))
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.DB.Close()
}

// rebind rewrites ? placeholders to the dialect's style.
func (d *Driver) rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// ignoreConflict rewrites a plain INSERT into the dialect's idempotent form.
func (d *Driver) ignoreConflict(query string) string {
	if d.Dialect == DialectPostgres {
		return query + " ON CONFLICT DO NOTHING"
	}

	return strings.Replace(query, "INSERT", "INSERT OR IGNORE", 1)
}

// inTx runs fn inside a transaction. Begin and commit failures surface as
// storage.UnavailableError; errors from fn roll the transaction back and
// pass through untouched so domain errors keep their type.
func (d *Driver) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable(op, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable(op, err)
	}

	return nil
}

// Timestamps are stored as RFC 3339 text so both backends round-trip them
// identically.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}

	return fmtTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}

	t := parseTime(s.String)
	return &t
}
