package conversation

import "context"

// Store defines the persistence contract for the conversation graph.
// Implementations live under pkg/storage. Methods that touch multiple rows
// (ForkView, DeleteSelectionsAfter) must apply atomically: a crash mid-way
// must never leave a half-forked view visible to readers.
type Store interface {
	// CreateConversation inserts a new conversation.
	CreateConversation(ctx context.Context, c *Conversation) error

	// GetConversation retrieves a conversation by id.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations returns all conversations ordered by creation.
	ListConversations(ctx context.Context) ([]*Conversation, error)

	// AppendTurn inserts a turn, assigning the next monotonic sequence
	// number within its conversation. The assigned Seq is written back
	// onto the passed turn. Sequence assignment and insert are one atomic
	// step.
	AppendTurn(ctx context.Context, t *Turn) error

	// GetTurn retrieves a turn by id.
	GetTurn(ctx context.Context, id string) (*Turn, error)

	// Turns returns a conversation's turns ordered by sequence number.
	Turns(ctx context.Context, conversationID string) ([]*Turn, error)

	// CreateAlternative inserts an open alternative, assigning the next
	// insertion sequence among alternatives at the same turn.
	CreateAlternative(ctx context.Context, a *Alternative) error

	// GetAlternative retrieves an alternative by id.
	GetAlternative(ctx context.Context, id string) (*Alternative, error)

	// AlternativesByTurn returns a turn's alternatives ordered by
	// insertion sequence.
	AlternativesByTurn(ctx context.Context, turnID string) ([]*Alternative, error)

	// CloseAlternative marks an alternative closed, recording the
	// incomplete flag and close error. Closing an already-closed
	// alternative is an error.
	CloseAlternative(ctx context.Context, id string, incomplete bool, closeErr string) error

	// AppendMessage inserts a message into an open alternative, assigning
	// the next message sequence. Fails if the alternative is closed.
	AppendMessage(ctx context.Context, m *Message) error

	// Messages returns an alternative's messages ordered by sequence.
	Messages(ctx context.Context, alternativeID string) ([]*Message, error)

	// CreateView inserts a view with no selections.
	CreateView(ctx context.Context, v *View) error

	// GetView retrieves a view by id.
	GetView(ctx context.Context, id string) (*View, error)

	// ViewsByConversation returns all views of a conversation.
	ViewsByConversation(ctx context.Context, conversationID string) ([]*View, error)

	// SetViewFrontier updates a view's resolution frontier.
	SetViewFrontier(ctx context.Context, viewID string, seq int) error

	// UpsertSelection inserts or replaces the selection for (view, turn).
	UpsertSelection(ctx context.Context, sel *Selection) error

	// Selections returns a view's explicit selections ordered by turn
	// sequence.
	Selections(ctx context.Context, viewID string) ([]*Selection, error)

	// ForkView inserts the view and its copied selections as one atomic
	// unit.
	ForkView(ctx context.Context, v *View, selections []*Selection) error

	// DeleteSelectionsAfter removes a view's selections at turns with a
	// sequence number strictly greater than afterSeq, atomically.
	DeleteSelectionsAfter(ctx context.Context, viewID string, afterSeq int) error
}
