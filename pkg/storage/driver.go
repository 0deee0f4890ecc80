// Package storage defines the persistence substrate the engines run on.
// A Driver is the union of every store contract plus entity existence
// checks; implementations live in the subpackages (inmemory, sqlite,
// postgres) and must apply each multi-row operation as one local
// transaction.
package storage

import (
	"context"

	"github.com/poucet/noema-sub001/pkg/collection"
	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/conversation"
	"github.com/poucet/noema-sub001/pkg/document"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/reference"
)

// Driver is the full persistence interface. Engines depend only on the
// narrow store interface they need; callers construct one driver and hand
// it to every engine.
type Driver interface {
	content.Store
	conversation.Store
	document.Store
	collection.Store
	reference.Store
	entity.Checker

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
