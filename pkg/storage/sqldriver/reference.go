package sqldriver

import (
	"context"
	"errors"

	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/reference"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// PutReference stores an edge. The composite primary key makes duplicate
// inserts no-ops.
func (d *Driver) PutReference(ctx context.Context, edge *reference.Edge) error {
	if edge == nil {
		return errors.New("cannot store nil edge")
	}

	query := d.ignoreConflict(`INSERT INTO refs (from_kind, from_id, to_kind, to_id, relation, created_at) VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := d.DB.ExecContext(ctx, d.rebind(query),
		string(edge.From.Kind), edge.From.ID,
		string(edge.To.Kind), edge.To.ID,
		edge.Relation, fmtTime(edge.CreatedAt))
	return storage.Unavailable("put reference", err)
}

// Backlinks returns edges pointing at the entity in insertion order.
func (d *Driver) Backlinks(ctx context.Context, to entity.Ref) ([]*reference.Edge, error) {
	query := `SELECT from_kind, from_id, to_kind, to_id, relation, created_at FROM refs WHERE to_kind = ? AND to_id = ? ORDER BY created_at`

	return d.queryEdges(ctx, query, string(to.Kind), to.ID)
}

// References returns edges originating from the entity in insertion order.
func (d *Driver) References(ctx context.Context, from entity.Ref) ([]*reference.Edge, error) {
	query := `SELECT from_kind, from_id, to_kind, to_id, relation, created_at FROM refs WHERE from_kind = ? AND from_id = ? ORDER BY created_at`

	return d.queryEdges(ctx, query, string(from.Kind), from.ID)
}

func (d *Driver) queryEdges(ctx context.Context, query string, args ...any) ([]*reference.Edge, error) {
	rows, err := d.DB.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, storage.Unavailable("list references", err)
	}
	defer rows.Close()

	var result []*reference.Edge
	for rows.Next() {
		var (
			edge      reference.Edge
			fromKind  string
			toKind    string
			createdAt string
		)
		if err := rows.Scan(&fromKind, &edge.From.ID, &toKind, &edge.To.ID, &edge.Relation, &createdAt); err != nil {
			return nil, storage.Unavailable("list references", err)
		}

		edge.From.Kind = entity.Kind(fromKind)
		edge.To.Kind = entity.Kind(toKind)
		edge.CreatedAt = parseTime(createdAt)
		result = append(result, &edge)
	}

	return result, storage.Unavailable("list references", rows.Err())
}
