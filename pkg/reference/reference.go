// Package reference implements the cross-reference index: directed, typed
// edges between any two addressable entities. Edges are referential only and
// never imply ownership or lifecycle coupling; an edge may outlive its
// target, in which case backlink resolution reports it as dangling rather
// than pruning it.
package reference

import (
	"context"
	"time"

	"github.com/poucet/noema-sub001/pkg/entity"
)

// RelationSpawnedFrom links a spawned child conversation back to the parent
// alternative it branched out of.
const RelationSpawnedFrom = "spawned_from"

// Edge is a directed, typed link between two entities.
type Edge struct {
	From      entity.Ref `json:"from"`
	To        entity.Ref `json:"to"`
	Relation  string     `json:"relation,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Backlink is an edge resolved from the target side. Dangling is set when
// the source entity no longer exists; the edge itself is left in place.
type Backlink struct {
	From     entity.Ref `json:"from"`
	Relation string     `json:"relation,omitempty"`
	Dangling bool       `json:"dangling,omitempty"`
}

// Store defines the persistence contract for cross-reference edges.
type Store interface {
	// PutReference stores an edge. Idempotent: storing an identical
	// (from, to, relation) triple again is a no-op.
	PutReference(ctx context.Context, edge *Edge) error

	// Backlinks returns all edges pointing at the given entity.
	Backlinks(ctx context.Context, to entity.Ref) ([]*Edge, error)

	// References returns all edges originating from the given entity.
	References(ctx context.Context, from entity.Ref) ([]*Edge, error)
}

// Index resolves backlinks lazily, checking source existence at read time.
type Index struct {
	store   Store
	checker entity.Checker
}

// NewIndex creates a backlink resolver over the given store. The checker is
// usually the storage driver itself.
func NewIndex(store Store, checker entity.Checker) *Index {
	return &Index{
		store:   store,
		checker: checker,
	}
}

// Reference records a directed edge between two entities.
func (i *Index) Reference(ctx context.Context, from, to entity.Ref, relation string) error {
	edge := &Edge{
		From:      from,
		To:        to,
		Relation:  relation,
		CreatedAt: time.Now().UTC(),
	}

	return i.store.PutReference(ctx, edge)
}

// Backlinks resolves every edge pointing at the entity, marking edges whose
// source has since been deleted as dangling.
func (i *Index) Backlinks(ctx context.Context, to entity.Ref) ([]*Backlink, error) {
	edges, err := i.store.Backlinks(ctx, to)
	if err != nil {
		return nil, err
	}

	links := make([]*Backlink, 0, len(edges))
	for _, edge := range edges {
		exists, err := i.checker.Exists(ctx, edge.From)
		if err != nil {
			return nil, err
		}

		links = append(links, &Backlink{
			From:     edge.From,
			Relation: edge.Relation,
			Dangling: !exists,
		})
	}

	return links, nil
}
