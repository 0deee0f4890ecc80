package sqldriver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// entityTables maps entity kinds to the table their ids live in.
var entityTables = map[entity.Kind]string{
	entity.KindContent:      "content_blocks",
	entity.KindAsset:        "content_assets",
	entity.KindConversation: "conversations",
	entity.KindTurn:         "turns",
	entity.KindAlternative:  "alternatives",
	entity.KindView:         "views",
	entity.KindDocument:     "documents",
	entity.KindRevision:     "revisions",
	entity.KindCollection:   "collections",
	entity.KindItem:         "items",
}

// Exists reports whether the referenced entity is currently present.
// Unknown kinds report false rather than erroring, matching the dangling
// reference contract.
func (d *Driver) Exists(ctx context.Context, ref entity.Ref) (bool, error) {
	table, ok := entityTables[ref.Kind]
	if !ok {
		return false, nil
	}

	query := `SELECT 1 FROM ` + table + ` WHERE id = ? LIMIT 1`

	var exists int
	err := d.DB.QueryRowContext(ctx, d.rebind(query), ref.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storage.Unavailable("exists", err)
	}

	return true, nil
}
