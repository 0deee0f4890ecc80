// Package conversation implements the turn/alternative/view graph: ordered
// turns, competing alternatives at each turn, and named views that select
// one alternative per turn to form a resolvable path.
//
// Alternatives are shared, immutable-once-closed records addressed by id.
// Views hold only ids, never owning pointers, so many views can reference
// the same alternative without copy or lifetime coupling.
package conversation

import (
	"time"

	"github.com/poucet/noema-sub001/pkg/content"
)

// Role indicates who a turn belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Conversation is the root structural record turns hang off of.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one ordered position within a conversation. Turns are append-only:
// created with a monotonic sequence number, never mutated, never deleted
// while any view references the conversation.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Seq            int       `json:"seq"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Alternative is one candidate outcome at a turn: an ordered sequence of
// messages. It is open while the producer streams messages into it and
// immutable once closed. Many views may reference it simultaneously.
type Alternative struct {
	ID             string `json:"id"`
	TurnID         string `json:"turn_id"`
	ConversationID string `json:"conversation_id"`

	// Seq is the insertion sequence among alternatives at the same turn.
	// Assigned by the store, used as the creation-time tie-break.
	Seq int `json:"seq"`

	// ModelID identifies the model that produced this alternative, empty
	// for user input.
	ModelID string `json:"model_id,omitempty"`

	// Closed marks the end of the message sequence. Only closed
	// alternatives are selectable.
	Closed bool `json:"closed"`

	// Incomplete marks an alternative that was cancelled or errored
	// mid-stream. It stays addressable for diagnostics but is excluded
	// from the default "most recent" pick during path resolution.
	Incomplete bool `json:"incomplete,omitempty"`

	// Error carries the failure that closed the alternative, if any.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// ToolCall is an inline tool-invocation record. Tool records are structural,
// not interned as content blocks: they are not independently searchable or
// referenceable.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolResult is an inline tool-result record paired to a ToolCall by id.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Output  string `json:"output,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// Message is one entry in an alternative's sequence. The text lives in the
// content store; the message holds only the block id plus asset references
// and inline tool records.
type Message struct {
	ID            string       `json:"id"`
	AlternativeID string       `json:"alternative_id"`
	Seq           int          `json:"seq"`
	ContentID     string       `json:"content_id"`
	AssetIDs      []string     `json:"asset_ids,omitempty"`
	ToolCalls     []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults   []ToolResult `json:"tool_results,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// View is a named, resolvable path through a conversation: at most one
// selected alternative per turn it has pinned, with unpinned turns resolved
// lazily (see Graph.ResolvePath).
type View struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Name           string    `json:"name"`

	// ForkedFrom is the view this one was forked off of, empty for views
	// created with the conversation.
	ForkedFrom string `json:"forked_from,omitempty"`

	// FrontierSeq bounds lazy path resolution: turns with a higher
	// sequence number are not part of this view's path until a selection
	// advances the frontier. Zero means unbounded, the state of a view
	// that has never been on either side of a fork. Forking bounds both
	// sides so turns appended for one branch stay invisible to the other.
	FrontierSeq int `json:"frontier_seq,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Selection pins one alternative at one turn for a view. TurnSeq is
// denormalized from the turn so prefix copies and truncation operate
// without extra lookups.
type Selection struct {
	ViewID        string `json:"view_id"`
	TurnID        string `json:"turn_id"`
	AlternativeID string `json:"alternative_id"`
	TurnSeq       int    `json:"turn_seq"`
}

// Step is one resolved position on a view's path.
type Step struct {
	Turn        *Turn        `json:"turn"`
	Alternative *Alternative `json:"alternative"`
	Messages    []*Message   `json:"messages"`
}

// Draft is the caller-supplied payload for appending a message to an open
// alternative. Text is interned into the content store; everything else is
// stored inline on the message.
type Draft struct {
	Text        string
	MediaType   string
	Origin      content.Origin
	AssetIDs    []string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}
