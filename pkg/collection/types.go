// Package collection implements the generic organizational layer: ordered,
// nestable, taggable items referencing any addressable entity. A collection
// never owns its targets; deleting one leaves every referenced entity in
// place.
package collection

import (
	"context"
	"time"

	"github.com/poucet/noema-sub001/pkg/entity"
)

// Collection is an ordered, optionally nested namespace of items.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is one entry in a collection. Items form a tree via ParentID and
// order among siblings by Position, a caller-managed sort key: moving one
// item never rewrites the positions recorded for its siblings.
type Item struct {
	ID           string  `json:"id"`
	CollectionID string  `json:"collection_id"`
	ParentID     *string `json:"parent_id,omitempty"`

	// Position orders the item among its siblings. Fractional values let
	// callers insert between neighbors without renumbering.
	Position float64 `json:"position"`

	// Target is the entity this item points at: a content block, a
	// document, a conversation, or a nested collection.
	Target entity.Ref `json:"target"`

	// Tags are flat labels queryable across collections.
	Tags []string `json:"tags,omitempty"`

	// Fields are free-form typed values for table and kanban style
	// grouping.
	Fields map[string]any `json:"fields,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the persistence contract for collections and items.
type Store interface {
	// CreateCollection inserts a new collection.
	CreateCollection(ctx context.Context, c *Collection) error

	// GetCollection retrieves a collection by id.
	GetCollection(ctx context.Context, id string) (*Collection, error)

	// ListCollections returns all collections ordered by creation.
	ListCollections(ctx context.Context) ([]*Collection, error)

	// DeleteCollection removes a collection and its items. Targets are
	// untouched.
	DeleteCollection(ctx context.Context, id string) error

	// CreateItem inserts an item.
	CreateItem(ctx context.Context, item *Item) error

	// GetItem retrieves an item by id.
	GetItem(ctx context.Context, id string) (*Item, error)

	// MoveItem reparents and repositions an item as a single metadata
	// update. It never touches the item's subtree.
	MoveItem(ctx context.Context, id string, parentID *string, position float64) error

	// Children returns the items under the given parent (nil for the
	// collection's top level) ordered by position.
	Children(ctx context.Context, collectionID string, parentID *string) ([]*Item, error)

	// Items returns all items of a collection.
	Items(ctx context.Context, collectionID string) ([]*Item, error)

	// ItemsByTag returns items carrying the tag, across all collections.
	ItemsByTag(ctx context.Context, tag string) ([]*Item, error)

	// ItemsByField returns items whose field key equals the value.
	ItemsByField(ctx context.Context, key string, value any) ([]*Item, error)

	// SetTags replaces an item's tag set.
	SetTags(ctx context.Context, id string, tags []string) error

	// SetFields merges the given fields into an item's field map. A nil
	// value removes the key.
	SetFields(ctx context.Context, id string, fields map[string]any) error
}
