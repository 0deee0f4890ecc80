// Package eventstream defines transport-neutral events emitted after
// structural mutations commit. Publishing happens outside the write path's
// transaction: a failed publish never rolls back a committed mutation, and
// consumers (UI notification channels, hook runners, indexers) stay decoupled
// from writers.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/poucet/noema-sub001/pkg/entity"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnAppended is emitted after a turn is appended to a
	// conversation.
	EventTypeTurnAppended = "noema.turn.appended"

	// EventTypeAlternativeClosed is emitted when an alternative
	// transitions from open to closed, completed or not.
	EventTypeAlternativeClosed = "noema.alternative.closed"

	// EventTypeMessageAppended is emitted after a message is written into
	// an open alternative.
	EventTypeMessageAppended = "noema.message.appended"

	// EventTypeSelectionChanged is emitted after a view selection is
	// inserted or updated.
	EventTypeSelectionChanged = "noema.selection.changed"

	// EventTypeViewForked is emitted after a view fork commits.
	EventTypeViewForked = "noema.view.forked"

	// EventTypeRevisionCommitted is emitted after a document revision is
	// created, whether by commit or branch.
	EventTypeRevisionCommitted = "noema.revision.committed"

	// EventTypeContentSwept is emitted after a garbage-collection sweep
	// removes unreferenced content blocks.
	EventTypeContentSwept = "noema.content.swept"
)

// Event is the transport-neutral payload for a committed structural
// mutation.
type Event struct {
	SchemaVersion int        `json:"schema_version"`
	EventType     string     `json:"event_type"`
	EventID       string     `json:"event_id"`
	EmittedAt     time.Time  `json:"emitted_at"`
	Subject       entity.Ref `json:"subject"`
	Scope         Scope      `json:"scope"`

	// Incomplete is set on alternative-closed events when the
	// alternative was cancelled mid-stream.
	Incomplete bool `json:"incomplete,omitempty"`

	// Error carries the close error for alternatives that failed.
	Error string `json:"error,omitempty"`

	// Swept is the number of blocks removed, for content-swept events.
	Swept int `json:"swept,omitempty"`
}

// Scope situates the subject within its owning structures so consumers can
// route without extra lookups.
type Scope struct {
	Conversation string `json:"conversation,omitempty"`
	View         string `json:"view,omitempty"`
	Turn         string `json:"turn,omitempty"`
	Document     string `json:"document,omitempty"`
	Collection   string `json:"collection,omitempty"`
}

// New builds an event with the schema version, a fresh event id, and the
// emission timestamp filled in.
func New(eventType string, subject entity.Ref, scope Scope) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Subject:       subject,
		Scope:         scope,
	}
}
