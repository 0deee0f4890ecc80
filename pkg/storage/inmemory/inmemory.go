// Package inmemory provides a map-backed storage driver. It is the default
// fixture for engine tests and the zero-setup backend for throwaway runs.
// A single RWMutex guards all tables, which makes every multi-row operation
// trivially atomic.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/poucet/noema-sub001/pkg/collection"
	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/conversation"
	"github.com/poucet/noema-sub001/pkg/document"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/reference"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// Driver implements storage.Driver with in-memory maps.
type Driver struct {
	mu sync.RWMutex

	blocks     map[string]*content.Block
	blockOrder []string
	assets     map[string]*content.Asset

	conversations map[string]*conversation.Conversation
	convOrder     []string
	turns         map[string]*conversation.Turn
	turnsByConv   map[string][]string
	alternatives  map[string]*conversation.Alternative
	altsByTurn    map[string][]string
	messages      map[string]*conversation.Message
	msgsByAlt     map[string][]string
	views         map[string]*conversation.View
	viewsByConv   map[string][]string
	selections    map[string]map[string]*conversation.Selection

	documents map[string]*document.Document
	docOrder  []string
	revisions map[string]*document.Revision
	revsByDoc map[string][]string

	collections map[string]*collection.Collection
	collOrder   []string
	items       map[string]*collection.Item
	itemsByColl map[string][]string

	edges []*reference.Edge
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		blocks:        make(map[string]*content.Block),
		assets:        make(map[string]*content.Asset),
		conversations: make(map[string]*conversation.Conversation),
		turns:         make(map[string]*conversation.Turn),
		turnsByConv:   make(map[string][]string),
		alternatives:  make(map[string]*conversation.Alternative),
		altsByTurn:    make(map[string][]string),
		messages:      make(map[string]*conversation.Message),
		msgsByAlt:     make(map[string][]string),
		views:         make(map[string]*conversation.View),
		viewsByConv:   make(map[string][]string),
		selections:    make(map[string]map[string]*conversation.Selection),
		documents:     make(map[string]*document.Document),
		revisions:     make(map[string]*document.Revision),
		revsByDoc:     make(map[string][]string),
		collections:   make(map[string]*collection.Collection),
		items:         make(map[string]*collection.Item),
		itemsByColl:   make(map[string][]string),
	}
}

// PutBlock stores a block. Idempotent by content-addressed id.
func (d *Driver) PutBlock(_ context.Context, block *content.Block) (bool, error) {
	if block == nil {
		return false, errors.New("cannot store nil block")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.blocks[block.ID]; ok {
		return false, nil
	}

	stored := *block
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	d.blocks[block.ID] = &stored
	d.blockOrder = append(d.blockOrder, block.ID)

	return true, nil
}

// GetBlock retrieves a block by id.
func (d *Driver) GetBlock(_ context.Context, id string) (*content.Block, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	block, ok := d.blocks[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindContent, ID: id}}
	}

	copied := *block
	return &copied, nil
}

// PutAsset stores an asset by digest. Idempotent.
func (d *Driver) PutAsset(_ context.Context, asset *content.Asset) (bool, error) {
	if asset == nil {
		return false, errors.New("cannot store nil asset")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.assets[asset.ID]; ok {
		return false, nil
	}

	stored := *asset
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	d.assets[asset.ID] = &stored
	return true, nil
}

// GetAsset retrieves an asset by digest.
func (d *Driver) GetAsset(_ context.Context, id string) (*content.Asset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	asset, ok := d.assets[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAsset, ID: id}}
	}

	copied := *asset
	return &copied, nil
}

// ScanBlocks iterates blocks in insertion order.
func (d *Driver) ScanBlocks(_ context.Context, fn func(*content.Block) (bool, error)) error {
	d.mu.RLock()
	order := make([]string, len(d.blockOrder))
	copy(order, d.blockOrder)
	d.mu.RUnlock()

	for _, id := range order {
		d.mu.RLock()
		block, ok := d.blocks[id]
		if ok {
			copied := *block
			block = &copied
		}
		d.mu.RUnlock()

		if !ok {
			// Swept since the order snapshot was taken.
			continue
		}

		ok, err := fn(block)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	return nil
}

// DeleteBlocks removes blocks by id. Only the garbage collector calls this.
func (d *Driver) DeleteBlocks(_ context.Context, ids []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := d.blocks[id]; !ok {
			continue
		}

		delete(d.blocks, id)
		removed++
	}

	if removed > 0 {
		kept := d.blockOrder[:0]
		for _, id := range d.blockOrder {
			if _, ok := d.blocks[id]; ok {
				kept = append(kept, id)
			}
		}
		d.blockOrder = kept
	}

	return removed, nil
}

// Exists reports whether the referenced entity is currently present.
func (d *Driver) Exists(_ context.Context, ref entity.Ref) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch ref.Kind {
	case entity.KindContent:
		_, ok := d.blocks[ref.ID]
		return ok, nil
	case entity.KindAsset:
		_, ok := d.assets[ref.ID]
		return ok, nil
	case entity.KindConversation:
		_, ok := d.conversations[ref.ID]
		return ok, nil
	case entity.KindTurn:
		_, ok := d.turns[ref.ID]
		return ok, nil
	case entity.KindAlternative:
		_, ok := d.alternatives[ref.ID]
		return ok, nil
	case entity.KindView:
		_, ok := d.views[ref.ID]
		return ok, nil
	case entity.KindDocument:
		_, ok := d.documents[ref.ID]
		return ok, nil
	case entity.KindRevision:
		_, ok := d.revisions[ref.ID]
		return ok, nil
	case entity.KindCollection:
		_, ok := d.collections[ref.ID]
		return ok, nil
	case entity.KindItem:
		_, ok := d.items[ref.ID]
		return ok, nil
	default:
		return false, nil
	}
}

// Ping always succeeds.
func (d *Driver) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
