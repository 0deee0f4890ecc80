package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// PutBlock stores a block. Idempotent: the content-addressed primary key
// makes a duplicate insert a no-op.
func (d *Driver) PutBlock(ctx context.Context, block *content.Block) (bool, error) {
	if block == nil {
		return false, errors.New("cannot store nil block")
	}

	originJSON, err := json.Marshal(block.Origin)
	if err != nil {
		return false, fmt.Errorf("marshaling origin: %w", err)
	}

	createdAt := block.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := d.ignoreConflict(`INSERT INTO content_blocks (id, digest, media_type, payload, origin, created_at) VALUES (?, ?, ?, ?, ?, ?)`)

	res, err := d.DB.ExecContext(ctx, d.rebind(query),
		block.ID, block.Digest, block.MediaType, block.Text, string(originJSON), fmtTime(createdAt))
	if err != nil {
		return false, storage.Unavailable("put block", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, storage.Unavailable("put block", err)
	}

	return inserted > 0, nil
}

// GetBlock retrieves a block by id.
func (d *Driver) GetBlock(ctx context.Context, id string) (*content.Block, error) {
	query := `SELECT id, digest, media_type, payload, origin, created_at FROM content_blocks WHERE id = ?`

	row := d.DB.QueryRowContext(ctx, d.rebind(query), id)

	block, err := scanBlock(row)
	var nf entity.NotFoundError
	if errors.As(err, &nf) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindContent, ID: id}}
	}

	return block, err
}

// PutAsset stores a binary asset by digest. Idempotent.
func (d *Driver) PutAsset(ctx context.Context, asset *content.Asset) (bool, error) {
	if asset == nil {
		return false, errors.New("cannot store nil asset")
	}

	originJSON, err := json.Marshal(asset.Origin)
	if err != nil {
		return false, fmt.Errorf("marshaling origin: %w", err)
	}

	createdAt := asset.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := d.ignoreConflict(`INSERT INTO content_assets (id, media_type, data, origin, created_at) VALUES (?, ?, ?, ?, ?)`)

	res, err := d.DB.ExecContext(ctx, d.rebind(query),
		asset.ID, asset.MediaType, asset.Data, string(originJSON), fmtTime(createdAt))
	if err != nil {
		return false, storage.Unavailable("put asset", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, storage.Unavailable("put asset", err)
	}

	return inserted > 0, nil
}

// GetAsset retrieves an asset by digest.
func (d *Driver) GetAsset(ctx context.Context, id string) (*content.Asset, error) {
	query := `SELECT id, media_type, data, origin, created_at FROM content_assets WHERE id = ?`

	var (
		asset      content.Asset
		originJSON string
		createdAt  string
	)

	err := d.DB.QueryRowContext(ctx, d.rebind(query), id).
		Scan(&asset.ID, &asset.MediaType, &asset.Data, &originJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAsset, ID: id}}
	}
	if err != nil {
		return nil, storage.Unavailable("get asset", err)
	}

	if err := json.Unmarshal([]byte(originJSON), &asset.Origin); err != nil {
		return nil, fmt.Errorf("unmarshaling origin: %w", err)
	}
	asset.CreatedAt = parseTime(createdAt)

	return &asset, nil
}

// ScanBlocks iterates every block in insertion order.
func (d *Driver) ScanBlocks(ctx context.Context, fn func(*content.Block) (bool, error)) error {
	query := `SELECT id, digest, media_type, payload, origin, created_at FROM content_blocks ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return storage.Unavailable("scan blocks", err)
	}
	defer rows.Close()

	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return err
		}

		ok, err := fn(block)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	return storage.Unavailable("scan blocks", rows.Err())
}

// DeleteBlocks removes blocks by id inside one transaction.
func (d *Driver) DeleteBlocks(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	removed := 0
	err := d.inTx(ctx, "delete blocks", func(tx *sql.Tx) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
		query := d.rebind(`DELETE FROM content_blocks WHERE id IN (` + placeholders + `)`)

		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return storage.Unavailable("delete blocks", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return storage.Unavailable("delete blocks", err)
		}

		removed = int(n)
		return nil
	})

	return removed, err
}

// rowScanner lets scanBlock serve both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*content.Block, error) {
	var (
		block      content.Block
		originJSON string
		createdAt  string
	)

	err := row.Scan(&block.ID, &block.Digest, &block.MediaType, &block.Text, &originJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindContent}}
	}
	if err != nil {
		return nil, storage.Unavailable("scan block", err)
	}

	if err := json.Unmarshal([]byte(originJSON), &block.Origin); err != nil {
		return nil, fmt.Errorf("unmarshaling origin: %w", err)
	}
	block.CreatedAt = parseTime(createdAt)

	return &block, nil
}
