package inmemory

import (
	"context"
	"errors"

	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/reference"
)

// PutReference stores an edge. Idempotent on (from, to, relation).
func (d *Driver) PutReference(_ context.Context, edge *reference.Edge) error {
	if edge == nil {
		return errors.New("cannot store nil edge")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.edges {
		if existing.From == edge.From && existing.To == edge.To && existing.Relation == edge.Relation {
			return nil
		}
	}

	stored := *edge
	d.edges = append(d.edges, &stored)

	return nil
}

// Backlinks returns edges pointing at the entity in insertion order.
func (d *Driver) Backlinks(_ context.Context, to entity.Ref) ([]*reference.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*reference.Edge
	for _, edge := range d.edges {
		if edge.To == to {
			copied := *edge
			result = append(result, &copied)
		}
	}

	return result, nil
}

// References returns edges originating from the entity in insertion order.
func (d *Driver) References(_ context.Context, from entity.Ref) ([]*reference.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*reference.Edge
	for _, edge := range d.edges {
		if edge.From == from {
			copied := *edge
			result = append(result, &copied)
		}
	}

	return result, nil
}
