package collection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/logger"
	"github.com/poucet/noema-sub001/pkg/utils"
)

// Tree is the collection engine. Writes to the same collection are
// serialized so the ancestor walk in Move cannot race a concurrent reparent.
type Tree struct {
	store   Store
	log     *slog.Logger
	writers *utils.KeyedMutex
}

// Option configures a Tree created with NewTree.
type Option func(*Tree)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tree) {
		t.log = log
	}
}

// NewTree creates a collection engine over the given store.
func NewTree(store Store, opts ...Option) *Tree {
	t := &Tree{
		store:   store,
		log:     logger.Nop(),
		writers: utils.NewKeyedMutex(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Create makes a new, empty collection.
func (t *Tree) Create(ctx context.Context, name string) (*Collection, error) {
	coll := &Collection{
		ID:        entity.NewID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := t.store.CreateCollection(ctx, coll); err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	return coll, nil
}

// Delete removes a collection and its items. The entities items pointed at
// are never touched.
func (t *Tree) Delete(ctx context.Context, collectionID string) error {
	unlock := t.writers.Lock(collectionID)
	defer unlock()

	return t.store.DeleteCollection(ctx, collectionID)
}

// AddItem inserts an item under the given parent (nil for top level) at the
// given position, pointing at the target entity.
func (t *Tree) AddItem(ctx context.Context, collectionID string, parentID *string, position float64, target entity.Ref) (*Item, error) {
	unlock := t.writers.Lock(collectionID)
	defer unlock()

	if _, err := t.store.GetCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := t.store.GetItem(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.CollectionID != collectionID {
			return nil, fmt.Errorf("parent item %s belongs to collection %s", *parentID, parent.CollectionID)
		}
	}

	now := time.Now().UTC()
	item := &Item{
		ID:           entity.NewID(),
		CollectionID: collectionID,
		ParentID:     parentID,
		Position:     position,
		Target:       target,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := t.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return item, nil
}

// Move reparents and repositions an item. The move is an O(1) metadata
// update, never a subtree copy. It fails with CycleDetectedError when the
// new parent is the item itself or one of its descendants.
func (t *Tree) Move(ctx context.Context, itemID string, newParentID *string, newPosition float64) error {
	item, err := t.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}

	unlock := t.writers.Lock(item.CollectionID)
	defer unlock()

	if newParentID != nil {
		if *newParentID == itemID {
			return CycleDetectedError{ItemID: itemID, ParentID: *newParentID}
		}

		parent, err := t.store.GetItem(ctx, *newParentID)
		if err != nil {
			return err
		}
		if parent.CollectionID != item.CollectionID {
			return fmt.Errorf("parent item %s belongs to collection %s", *newParentID, parent.CollectionID)
		}

		// Walk from the candidate parent up to the root; finding the
		// item on the way means the parent is inside its subtree.
		current := parent
		for current.ParentID != nil {
			if *current.ParentID == itemID {
				return CycleDetectedError{ItemID: itemID, ParentID: *newParentID}
			}

			current, err = t.store.GetItem(ctx, *current.ParentID)
			if err != nil {
				return fmt.Errorf("walking ancestors of %s: %w", *newParentID, err)
			}
		}
	}

	if err := t.store.MoveItem(ctx, itemID, newParentID, newPosition); err != nil {
		return fmt.Errorf("moving item: %w", err)
	}

	return nil
}

// Tag replaces an item's tag set. Idempotent.
func (t *Tree) Tag(ctx context.Context, itemID string, tags []string) error {
	if _, err := t.store.GetItem(ctx, itemID); err != nil {
		return err
	}

	return t.store.SetTags(ctx, itemID, tags)
}

// SetFields merges typed fields into an item. Idempotent and independent of
// tags.
func (t *Tree) SetFields(ctx context.Context, itemID string, fields map[string]any) error {
	if _, err := t.store.GetItem(ctx, itemID); err != nil {
		return err
	}

	return t.store.SetFields(ctx, itemID, fields)
}

// Children lists the items under a parent (nil for top level) ordered by
// position.
func (t *Tree) Children(ctx context.Context, collectionID string, parentID *string) ([]*Item, error) {
	return t.store.Children(ctx, collectionID, parentID)
}

// ByTag lists items carrying the tag across all collections.
func (t *Tree) ByTag(ctx context.Context, tag string) ([]*Item, error) {
	return t.store.ItemsByTag(ctx, tag)
}

// ByField lists items whose field key equals the value, for table and
// kanban grouping.
func (t *Tree) ByField(ctx context.Context, key string, value any) ([]*Item, error) {
	return t.store.ItemsByField(ctx, key, value)
}
