package inmemory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poucet/noema-sub001/pkg/document"
	"github.com/poucet/noema-sub001/pkg/entity"
)

// CreateDocument inserts a document.
func (d *Driver) CreateDocument(_ context.Context, doc *document.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.documents[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}

	stored := *doc
	d.documents[doc.ID] = &stored
	d.docOrder = append(d.docOrder, doc.ID)

	return nil
}

// GetDocument retrieves a document by id.
func (d *Driver) GetDocument(_ context.Context, id string) (*document.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.documents[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: id}}
	}

	copied := *doc
	return &copied, nil
}

// ListDocuments returns all documents in insertion order.
func (d *Driver) ListDocuments(_ context.Context) ([]*document.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*document.Document, 0, len(d.docOrder))
	for _, id := range d.docOrder {
		copied := *d.documents[id]
		result = append(result, &copied)
	}

	return result, nil
}

// CommitRevision inserts the revision and advances the document's current
// pointer under one lock.
func (d *Driver) CommitRevision(_ context.Context, rev *document.Revision) error {
	if rev == nil {
		return errors.New("cannot store nil revision")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.documents[rev.DocumentID]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: rev.DocumentID}}
	}

	if err := d.insertRevisionLocked(rev); err != nil {
		return err
	}

	if doc.RootRevisionID == "" {
		doc.RootRevisionID = rev.ID
	}
	doc.CurrentRevisionID = rev.ID
	doc.UpdatedAt = time.Now().UTC()

	return nil
}

// CreateRevision inserts the revision without touching document pointers.
func (d *Driver) CreateRevision(_ context.Context, rev *document.Revision) error {
	if rev == nil {
		return errors.New("cannot store nil revision")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.documents[rev.DocumentID]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: rev.DocumentID}}
	}

	return d.insertRevisionLocked(rev)
}

func (d *Driver) insertRevisionLocked(rev *document.Revision) error {
	if _, ok := d.revisions[rev.ID]; ok {
		return fmt.Errorf("revision %s already exists", rev.ID)
	}

	if rev.ParentID != nil {
		if _, ok := d.revisions[*rev.ParentID]; !ok {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindRevision, ID: *rev.ParentID}}
		}
	}

	stored := *rev
	d.revisions[rev.ID] = &stored
	d.revsByDoc[rev.DocumentID] = append(d.revsByDoc[rev.DocumentID], rev.ID)

	return nil
}

// GetRevision retrieves a revision by id.
func (d *Driver) GetRevision(_ context.Context, id string) (*document.Revision, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rev, ok := d.revisions[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindRevision, ID: id}}
	}

	copied := *rev
	return &copied, nil
}

// SetCurrentRevision moves a document's current pointer.
func (d *Driver) SetCurrentRevision(_ context.Context, documentID, revisionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.documents[documentID]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: documentID}}
	}

	if _, ok := d.revisions[revisionID]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindRevision, ID: revisionID}}
	}

	doc.CurrentRevisionID = revisionID
	doc.UpdatedAt = time.Now().UTC()

	return nil
}

// RevisionsByDocument returns a document's revisions in insertion order.
func (d *Driver) RevisionsByDocument(_ context.Context, documentID string) ([]*document.Revision, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.revsByDoc[documentID]
	result := make([]*document.Revision, 0, len(ids))
	for _, id := range ids {
		copied := *d.revisions[id]
		result = append(result, &copied)
	}

	return result, nil
}
