// Package document implements versioned documents as a DAG of immutable
// revisions, each pointing at one content block. Branches fork from existing
// revisions and stay divergent; there is no merge operation, a caller picks
// a branch by checking it out as current.
package document

import (
	"context"
	"time"
)

// Document is a named artifact with a current-revision pointer into its
// revision chain.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// RootRevisionID is the first revision ever committed. Checkout
	// validates candidate revisions against it.
	RootRevisionID string `json:"root_revision_id,omitempty"`

	// CurrentRevisionID is the revision the document presently shows.
	CurrentRevisionID string `json:"current_revision_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is one immutable snapshot: a content block plus a parent link.
// ParentID is nil only for the root. Parents are fixed at creation and must
// already exist, which keeps the chain acyclic by construction.
type Revision struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ParentID   *string   `json:"parent_id,omitempty"`
	ContentID  string    `json:"content_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store defines the persistence contract for documents and revisions.
type Store interface {
	// CreateDocument inserts a new document with no revisions.
	CreateDocument(ctx context.Context, d *Document) error

	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// ListDocuments returns all documents ordered by creation.
	ListDocuments(ctx context.Context) ([]*Document, error)

	// CommitRevision inserts the revision and advances the document's
	// current pointer (and root pointer, for the first revision) as one
	// atomic unit.
	CommitRevision(ctx context.Context, rev *Revision) error

	// CreateRevision inserts the revision without touching any document
	// pointer. Used by branch.
	CreateRevision(ctx context.Context, rev *Revision) error

	// GetRevision retrieves a revision by id.
	GetRevision(ctx context.Context, id string) (*Revision, error)

	// SetCurrentRevision moves the document's current pointer. The
	// engine validates ancestry before calling this.
	SetCurrentRevision(ctx context.Context, documentID, revisionID string) error

	// RevisionsByDocument returns all of a document's revisions ordered
	// by creation.
	RevisionsByDocument(ctx context.Context, documentID string) ([]*Revision, error)
}
