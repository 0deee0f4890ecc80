package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poucet/noema-sub001/pkg/content"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/eventstream"
	"github.com/poucet/noema-sub001/pkg/eventstream/nop"
	"github.com/poucet/noema-sub001/pkg/logger"
	"github.com/poucet/noema-sub001/pkg/utils"
)

// Chain is the document engine. Writes to the same document are serialized
// through a keyed mutex; history reads take no lock since revisions are
// immutable.
type Chain struct {
	store    Store
	contents content.Store
	events   eventstream.Publisher
	log      *slog.Logger
	writers  *utils.KeyedMutex
}

// Option configures a Chain created with NewChain.
type Option func(*Chain)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Chain) {
		c.log = log
	}
}

// WithPublisher sets the event publisher notified after revisions commit.
func WithPublisher(pub eventstream.Publisher) Option {
	return func(c *Chain) {
		c.events = pub
	}
}

// NewChain creates a document engine over the given stores.
func NewChain(store Store, contents content.Store, opts ...Option) *Chain {
	c := &Chain{
		store:    store,
		contents: contents,
		events:   nop.NewPublisher(),
		log:      logger.Nop(),
		writers:  utils.NewKeyedMutex(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Create makes a new document with no revisions.
func (c *Chain) Create(ctx context.Context, name string) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:        entity.NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}

	return doc, nil
}

// Commit interns the text, creates a revision whose parent is the document's
// current revision, and advances the current pointer. Insert and pointer
// move are one atomic unit in the store.
func (c *Chain) Commit(ctx context.Context, documentID, text string, origin content.Origin) (*Revision, error) {
	unlock := c.writers.Lock(documentID)
	defer unlock()

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	block := content.NewBlock(text, "", origin)
	if _, err := c.contents.PutBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("interning revision content: %w", err)
	}

	rev := &Revision{
		ID:         entity.NewID(),
		DocumentID: doc.ID,
		ContentID:  block.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if doc.CurrentRevisionID != "" {
		parent := doc.CurrentRevisionID
		rev.ParentID = &parent
	}

	if err := c.store.CommitRevision(ctx, rev); err != nil {
		return nil, fmt.Errorf("committing revision: %w", err)
	}

	c.publish(ctx, doc.ID, rev.ID)

	return rev, nil
}

// Branch interns the text and creates a revision whose parent is an
// arbitrary, possibly non-head revision. No document pointer moves; the
// caller checks the branch out separately if it wants it current.
func (c *Chain) Branch(ctx context.Context, fromRevisionID, text string, origin content.Origin) (*Revision, error) {
	parent, err := c.store.GetRevision(ctx, fromRevisionID)
	if err != nil {
		return nil, err
	}

	unlock := c.writers.Lock(parent.DocumentID)
	defer unlock()

	block := content.NewBlock(text, "", origin)
	if _, err := c.contents.PutBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("interning revision content: %w", err)
	}

	parentID := parent.ID
	rev := &Revision{
		ID:         entity.NewID(),
		DocumentID: parent.DocumentID,
		ParentID:   &parentID,
		ContentID:  block.ID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := c.store.CreateRevision(ctx, rev); err != nil {
		return nil, fmt.Errorf("branching revision: %w", err)
	}

	c.publish(ctx, parent.DocumentID, rev.ID)

	return rev, nil
}

// Checkout moves the document's current pointer to the given revision after
// verifying the revision's ancestor chain reaches the document's root.
func (c *Chain) Checkout(ctx context.Context, documentID, revisionID string) error {
	unlock := c.writers.Lock(documentID)
	defer unlock()

	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	ancestry, err := c.Ancestry(ctx, revisionID)
	if err != nil {
		return err
	}

	root := ancestry[len(ancestry)-1]
	if doc.RootRevisionID == "" || root.ID != doc.RootRevisionID {
		return ForeignRevisionError{DocumentID: documentID, RevisionID: revisionID}
	}

	if err := c.store.SetCurrentRevision(ctx, documentID, revisionID); err != nil {
		return fmt.Errorf("moving current revision: %w", err)
	}

	return nil
}

// History walks parent pointers from the document's current revision back to
// the root (current first, root last). A document with no revisions has an
// empty history.
func (c *Chain) History(ctx context.Context, documentID string) ([]*Revision, error) {
	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.CurrentRevisionID == "" {
		return nil, nil
	}

	return c.Ancestry(ctx, doc.CurrentRevisionID)
}

// Ancestry returns the path from a revision back to its root (revision
// first, root last).
func (c *Chain) Ancestry(ctx context.Context, revisionID string) ([]*Revision, error) {
	var path []*Revision
	current := revisionID

	for {
		rev, err := c.store.GetRevision(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("getting revision %s: %w", current, err)
		}
		path = append(path, rev)

		if rev.ParentID == nil {
			break
		}
		current = *rev.ParentID
	}

	return path, nil
}

// Get returns a document by id.
func (c *Chain) Get(ctx context.Context, documentID string) (*Document, error) {
	return c.store.GetDocument(ctx, documentID)
}

func (c *Chain) publish(ctx context.Context, documentID, revisionID string) {
	event := eventstream.New(
		eventstream.EventTypeRevisionCommitted,
		entity.Ref{Kind: entity.KindRevision, ID: revisionID},
		eventstream.Scope{Document: documentID},
	)

	if err := c.events.Publish(ctx, event); err != nil {
		c.log.Warn("publishing event failed", "event_type", event.EventType, "error", err)
	}
}
