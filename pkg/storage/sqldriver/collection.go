package sqldriver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/poucet/noema-sub001/pkg/collection"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// CreateCollection inserts a collection.
func (d *Driver) CreateCollection(ctx context.Context, c *collection.Collection) error {
	if c == nil {
		return errors.New("cannot store nil collection")
	}

	query := `INSERT INTO collections (id, name, created_at) VALUES (?, ?, ?)`

	_, err := d.DB.ExecContext(ctx, d.rebind(query), c.ID, c.Name, fmtTime(c.CreatedAt))
	return storage.Unavailable("create collection", err)
}

// GetCollection retrieves a collection by id.
func (d *Driver) GetCollection(ctx context.Context, id string) (*collection.Collection, error) {
	query := `SELECT id, name, created_at FROM collections WHERE id = ?`

	var (
		c         collection.Collection
		createdAt string
	)

	err := d.DB.QueryRowContext(ctx, d.rebind(query), id).Scan(&c.ID, &c.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindCollection, ID: id}}
	}
	if err != nil {
		return nil, storage.Unavailable("get collection", err)
	}

	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListCollections returns all collections ordered by creation.
func (d *Driver) ListCollections(ctx context.Context) ([]*collection.Collection, error) {
	query := `SELECT id, name, created_at FROM collections ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("list collections", err)
	}
	defer rows.Close()

	var result []*collection.Collection
	for rows.Next() {
		var (
			c         collection.Collection
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, storage.Unavailable("list collections", err)
		}
		c.CreatedAt = parseTime(createdAt)
		result = append(result, &c)
	}

	return result, storage.Unavailable("list collections", rows.Err())
}

// DeleteCollection removes a collection and its items in one transaction.
// Item targets are never touched.
func (d *Driver) DeleteCollection(ctx context.Context, id string) error {
	return d.inTx(ctx, "delete collection", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM items WHERE collection_id = ?`), id)
		if err != nil {
			return storage.Unavailable("delete collection", err)
		}

		res, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM collections WHERE id = ?`), id)
		if err != nil {
			return storage.Unavailable("delete collection", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return storage.Unavailable("delete collection", err)
		}
		if n == 0 {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindCollection, ID: id}}
		}

		return nil
	})
}

// CreateItem inserts an item.
func (d *Driver) CreateItem(ctx context.Context, item *collection.Item) error {
	if item == nil {
		return errors.New("cannot store nil item")
	}

	tagsJSON, fieldsJSON, err := marshalItemMeta(item)
	if err != nil {
		return err
	}

	var parent any
	if item.ParentID != nil {
		parent = *item.ParentID
	}

	query := `INSERT INTO items (id, collection_id, parent_id, position, target_kind, target_id, tags, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = d.DB.ExecContext(ctx, d.rebind(query),
		item.ID, item.CollectionID, parent, item.Position,
		string(item.Target.Kind), item.Target.ID,
		tagsJSON, fieldsJSON, fmtTime(item.CreatedAt), fmtTime(item.UpdatedAt))
	return storage.Unavailable("create item", err)
}

// GetItem retrieves an item by id.
func (d *Driver) GetItem(ctx context.Context, id string) (*collection.Item, error) {
	query := itemSelect + ` WHERE id = ?`

	item, err := scanItem(d.DB.QueryRowContext(ctx, d.rebind(query), id))
	var nf entity.NotFoundError
	if errors.As(err, &nf) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
	}

	return item, err
}

// MoveItem reparents and repositions one item. The subtree is untouched.
func (d *Driver) MoveItem(ctx context.Context, id string, parentID *string, position float64) error {
	return d.inTx(ctx, "move item", func(tx *sql.Tx) error {
		if parentID != nil {
			var exists int
			err := tx.QueryRowContext(ctx, d.rebind(`SELECT 1 FROM items WHERE id = ?`), *parentID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: *parentID}}
			}
			if err != nil {
				return storage.Unavailable("move item", err)
			}
		}

		var parent any
		if parentID != nil {
			parent = *parentID
		}

		res, err := tx.ExecContext(ctx,
			d.rebind(`UPDATE items SET parent_id = ?, position = ?, updated_at = ? WHERE id = ?`),
			parent, position, fmtTime(time.Now()), id)
		if err != nil {
			return storage.Unavailable("move item", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return storage.Unavailable("move item", err)
		}
		if n == 0 {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
		}

		return nil
	})
}

// Children returns the items under a parent ordered by position.
func (d *Driver) Children(ctx context.Context, collectionID string, parentID *string) ([]*collection.Item, error) {
	var (
		query string
		args  []any
	)

	if parentID == nil {
		query = itemSelect + ` WHERE collection_id = ? AND parent_id IS NULL ORDER BY position, created_at`
		args = []any{collectionID}
	} else {
		query = itemSelect + ` WHERE collection_id = ? AND parent_id = ? ORDER BY position, created_at`
		args = []any{collectionID, *parentID}
	}

	return d.queryItems(ctx, query, args...)
}

// Items returns all items of a collection ordered by position.
func (d *Driver) Items(ctx context.Context, collectionID string) ([]*collection.Item, error) {
	query := itemSelect + ` WHERE collection_id = ? ORDER BY position, created_at`
	return d.queryItems(ctx, query, collectionID)
}

// ItemsByTag returns items carrying the tag across all collections. Tags
// are stored as a JSON array, so the filter runs client-side after a
// coarse LIKE prefilter.
func (d *Driver) ItemsByTag(ctx context.Context, tag string) ([]*collection.Item, error) {
	query := itemSelect + ` WHERE tags LIKE ? ORDER BY position, created_at`

	candidates, err := d.queryItems(ctx, query, `%"`+tag+`"%`)
	if err != nil {
		return nil, err
	}

	var result []*collection.Item
	for _, item := range candidates {
		for _, t := range item.Tags {
			if t == tag {
				result = append(result, item)
				break
			}
		}
	}

	return result, nil
}

// ItemsByField returns items whose field key equals the value. Field maps
// are stored as JSON, so the predicate is evaluated client-side on the
// decoded values.
func (d *Driver) ItemsByField(ctx context.Context, key string, value any) ([]*collection.Item, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshaling field value: %w", err)
	}

	all, err := d.queryItems(ctx, itemSelect+` ORDER BY position, created_at`)
	if err != nil {
		return nil, err
	}

	var result []*collection.Item
	for _, item := range all {
		v, ok := item.Fields[key]
		if !ok {
			continue
		}

		got, err := json.Marshal(v)
		if err != nil {
			continue
		}

		if bytes.Equal(got, want) {
			result = append(result, item)
		}
	}

	return result, nil
}

// SetTags replaces an item's tag set.
func (d *Driver) SetTags(ctx context.Context, id string, tags []string) error {
	tagsJSON, err := json.Marshal(orEmpty(tags))
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}

	res, err := d.DB.ExecContext(ctx,
		d.rebind(`UPDATE items SET tags = ?, updated_at = ? WHERE id = ?`),
		string(tagsJSON), fmtTime(time.Now()), id)
	if err != nil {
		return storage.Unavailable("set tags", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("set tags", err)
	}
	if n == 0 {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
	}

	return nil
}

// SetFields merges fields into an item's field map in one transaction. A
// nil value removes the key.
func (d *Driver) SetFields(ctx context.Context, id string, fields map[string]any) error {
	return d.inTx(ctx, "set fields", func(tx *sql.Tx) error {
		var fieldsJSON string
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT fields FROM items WHERE id = ?`), id).Scan(&fieldsJSON)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
		}
		if err != nil {
			return storage.Unavailable("set fields", err)
		}

		current := make(map[string]any)
		if err := json.Unmarshal([]byte(fieldsJSON), &current); err != nil {
			return fmt.Errorf("unmarshaling fields: %w", err)
		}

		for k, v := range fields {
			if v == nil {
				delete(current, k)
				continue
			}
			current[k] = v
		}

		merged, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("marshaling fields: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`UPDATE items SET fields = ?, updated_at = ? WHERE id = ?`),
			string(merged), fmtTime(time.Now()), id)
		return storage.Unavailable("set fields", err)
	})
}

const itemSelect = `SELECT id, collection_id, parent_id, position, target_kind, target_id, tags, fields, created_at, updated_at FROM items`

func (d *Driver) queryItems(ctx context.Context, query string, args ...any) ([]*collection.Item, error) {
	rows, err := d.DB.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, storage.Unavailable("list items", err)
	}
	defer rows.Close()

	var result []*collection.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	return result, storage.Unavailable("list items", rows.Err())
}

func scanItem(row rowScanner) (*collection.Item, error) {
	var (
		item       collection.Item
		parentID   sql.NullString
		targetKind string
		tagsJSON   string
		fieldsJSON string
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(&item.ID, &item.CollectionID, &parentID, &item.Position,
		&targetKind, &item.Target.ID, &tagsJSON, &fieldsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem}}
	}
	if err != nil {
		return nil, storage.Unavailable("scan item", err)
	}

	if parentID.Valid {
		item.ParentID = &parentID.String
	}
	item.Target.Kind = entity.Kind(targetKind)

	if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &item.Fields); err != nil {
		return nil, fmt.Errorf("unmarshaling fields: %w", err)
	}

	if len(item.Tags) == 0 {
		item.Tags = nil
	}
	if len(item.Fields) == 0 {
		item.Fields = nil
	}

	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)

	return &item, nil
}

func marshalItemMeta(item *collection.Item) (string, string, error) {
	tagsJSON, err := json.Marshal(orEmpty(item.Tags))
	if err != nil {
		return "", "", fmt.Errorf("marshaling tags: %w", err)
	}

	fields := item.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("marshaling fields: %w", err)
	}

	return string(tagsJSON), string(fieldsJSON), nil
}
