package inmemory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/poucet/noema-sub001/pkg/collection"
	"github.com/poucet/noema-sub001/pkg/entity"
)

// CreateCollection inserts a collection.
func (d *Driver) CreateCollection(_ context.Context, c *collection.Collection) error {
	if c == nil {
		return errors.New("cannot store nil collection")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[c.ID]; ok {
		return fmt.Errorf("collection %s already exists", c.ID)
	}

	stored := *c
	d.collections[c.ID] = &stored
	d.collOrder = append(d.collOrder, c.ID)

	return nil
}

// GetCollection retrieves a collection by id.
func (d *Driver) GetCollection(_ context.Context, id string) (*collection.Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.collections[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindCollection, ID: id}}
	}

	copied := *c
	return &copied, nil
}

// ListCollections returns all collections in insertion order.
func (d *Driver) ListCollections(_ context.Context) ([]*collection.Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*collection.Collection, 0, len(d.collOrder))
	for _, id := range d.collOrder {
		copied := *d.collections[id]
		result = append(result, &copied)
	}

	return result, nil
}

// DeleteCollection removes a collection and its items, leaving targets
// untouched.
func (d *Driver) DeleteCollection(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[id]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindCollection, ID: id}}
	}

	for _, itemID := range d.itemsByColl[id] {
		delete(d.items, itemID)
	}
	delete(d.itemsByColl, id)
	delete(d.collections, id)

	kept := d.collOrder[:0]
	for _, cid := range d.collOrder {
		if cid != id {
			kept = append(kept, cid)
		}
	}
	d.collOrder = kept

	return nil
}

// CreateItem inserts an item.
func (d *Driver) CreateItem(_ context.Context, item *collection.Item) error {
	if item == nil {
		return errors.New("cannot store nil item")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[item.CollectionID]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindCollection, ID: item.CollectionID}}
	}

	if _, ok := d.items[item.ID]; ok {
		return fmt.Errorf("item %s already exists", item.ID)
	}

	stored := copyItem(item)
	d.items[item.ID] = stored
	d.itemsByColl[item.CollectionID] = append(d.itemsByColl[item.CollectionID], item.ID)

	return nil
}

// GetItem retrieves an item by id.
func (d *Driver) GetItem(_ context.Context, id string) (*collection.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	item, ok := d.items[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
	}

	return copyItem(item), nil
}

// MoveItem reparents and repositions a single item.
func (d *Driver) MoveItem(_ context.Context, id string, parentID *string, position float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.items[id]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
	}

	if parentID != nil {
		if _, ok := d.items[*parentID]; !ok {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: *parentID}}
		}
		parent := *parentID
		item.ParentID = &parent
	} else {
		item.ParentID = nil
	}

	item.Position = position
	item.UpdatedAt = time.Now().UTC()

	return nil
}

// Children returns the items under a parent ordered by position.
func (d *Driver) Children(_ context.Context, collectionID string, parentID *string) ([]*collection.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*collection.Item
	for _, id := range d.itemsByColl[collectionID] {
		item := d.items[id]
		if !sameParent(item.ParentID, parentID) {
			continue
		}
		result = append(result, copyItem(item))
	}

	sortItems(result)
	return result, nil
}

// Items returns all items of a collection ordered by position.
func (d *Driver) Items(_ context.Context, collectionID string) ([]*collection.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.itemsByColl[collectionID]
	result := make([]*collection.Item, 0, len(ids))
	for _, id := range ids {
		result = append(result, copyItem(d.items[id]))
	}

	sortItems(result)
	return result, nil
}

// ItemsByTag returns items carrying the tag across all collections.
func (d *Driver) ItemsByTag(_ context.Context, tag string) ([]*collection.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*collection.Item
	for _, item := range d.items {
		for _, t := range item.Tags {
			if t == tag {
				result = append(result, copyItem(item))
				break
			}
		}
	}

	sortItems(result)
	return result, nil
}

// ItemsByField returns items whose field key equals the value.
func (d *Driver) ItemsByField(_ context.Context, key string, value any) ([]*collection.Item, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*collection.Item
	for _, item := range d.items {
		v, ok := item.Fields[key]
		if ok && reflect.DeepEqual(v, value) {
			result = append(result, copyItem(item))
		}
	}

	sortItems(result)
	return result, nil
}

// SetTags replaces an item's tag set.
func (d *Driver) SetTags(_ context.Context, id string, tags []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.items[id]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
	}

	item.Tags = append([]string(nil), tags...)
	item.UpdatedAt = time.Now().UTC()

	return nil
}

// SetFields merges fields into an item. A nil value removes the key.
func (d *Driver) SetFields(_ context.Context, id string, fields map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.items[id]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindItem, ID: id}}
	}

	if item.Fields == nil {
		item.Fields = make(map[string]any, len(fields))
	}

	for k, v := range fields {
		if v == nil {
			delete(item.Fields, k)
			continue
		}
		item.Fields[k] = v
	}

	item.UpdatedAt = time.Now().UTC()

	return nil
}

func copyItem(item *collection.Item) *collection.Item {
	copied := *item
	copied.Tags = append([]string(nil), item.Tags...)
	if item.Fields != nil {
		copied.Fields = make(map[string]any, len(item.Fields))
		for k, v := range item.Fields {
			copied.Fields[k] = v
		}
	}

	return &copied
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func sortItems(items []*collection.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
