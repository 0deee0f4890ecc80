package conversation

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
	"github.com/poucet/noema-sub001/pkg/reference"
	"github.com/poucet/noema-sub001/pkg/utils"
)

// DefaultViewName is the name of the view created alongside a conversation.
const DefaultViewName = "main"

// Graph is the conversation engine. One Graph value serves the whole
// process; writes to the same conversation are serialized through a keyed
// mutex while reads and writes to unrelated conversations proceed
// concurrently.
type Graph struct {
	store    Store
	contents content.Store
	refs     *reference.Index
	events   eventstream.Publisher
	log      *slog.Logger
	writers  *utils.KeyedMutex
}

// Option configures a Graph created with NewGraph.
type Option func(*Graph)

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Graph) {
		g.log = log
	}
}

// WithPublisher sets the event publisher notified after mutations commit.
// Defaults to the no-op publisher.
func WithPublisher(pub eventstream.Publisher) Option {
	return func(g *Graph) {
		g.events = pub
	}
}

// WithReferences wires the cross-reference index used by SpawnChild to
// record the spawned_from edge.
func WithReferences(refs *reference.Index) Option {
	return func(g *Graph) {
		g.refs = refs
	}
}

// NewGraph creates a conversation engine over the given stores.
func NewGraph(store Store, contents content.Store, opts ...Option) *Graph {
	g := &Graph{
		store:    store,
		contents: contents,
		events:   nop.NewPublisher(),
		log:      logger.Nop(),
		writers:  utils.NewKeyedMutex(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CreateConversation creates a conversation together with its default view.
func (g *Graph) CreateConversation(ctx context.Context, title string) (*Conversation, *View, error) {
	conv := &Conversation{
		ID:        entity.NewID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	if err := g.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("creating conversation: %w", err)
	}

	view := &View{
		ID:             entity.NewID(),
		ConversationID: conv.ID,
		Name:           DefaultViewName,
		CreatedAt:      time.Now().UTC(),
	}

	if err := g.store.CreateView(ctx, view); err != nil {
		return nil, nil, fmt.Errorf("creating default view: %w", err)
	}

	g.log.Debug("conversation created", "conversation", conv.ID, "view", view.ID)

	return conv, view, nil
}

// AddTurn appends a turn to a conversation. The store assigns the next
// monotonic sequence number.
func (g *Graph) AddTurn(ctx context.Context, conversationID string, role Role) (*Turn, error) {
	unlock := g.writers.Lock(conversationID)
	defer unlock()

	if _, err := g.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	turn := &Turn{
		ID:             entity.NewID(),
		ConversationID: conversationID,
		Role:           role,
		CreatedAt:      time.Now().UTC(),
	}

	if err := g.store.AppendTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("appending turn: %w", err)
	}

	g.publish(ctx, eventstream.New(
		eventstream.EventTypeTurnAppended,
		entity.Ref{Kind: entity.KindTurn, ID: turn.ID},
		eventstream.Scope{Conversation: conversationID},
	))

	return turn, nil
}

// AddAlternative opens a new alternative at a turn. The caller streams
// messages into it with AppendMessage and then closes it; until closed it is
// not selectable.
func (g *Graph) AddAlternative(ctx context.Context, turnID string, modelID string) (*Alternative, error) {
	turn, err := g.store.GetTurn(ctx, turnID)
	if err != nil {
		return nil, err
	}

	unlock := g.writers.Lock(turn.ConversationID)
	defer unlock()

	alt := &Alternative{
		ID:             entity.NewID(),
		TurnID:         turn.ID,
		ConversationID: turn.ConversationID,
		ModelID:        modelID,
		CreatedAt:      time.Now().UTC(),
	}

	if err := g.store.CreateAlternative(ctx, alt); err != nil {
		return nil, fmt.Errorf("creating alternative: %w", err)
	}

	return alt, nil
}

// AppendMessage interns the draft's text into the content store and appends
// the message to an open alternative.
func (g *Graph) AppendMessage(ctx context.Context, alternativeID string, draft Draft) (*Message, error) {
	alt, err := g.store.GetAlternative(ctx, alternativeID)
	if err != nil {
		return nil, err
	}

	unlock := g.writers.Lock(alt.ConversationID)
	defer unlock()

	if alt.Closed {
		return nil, fmt.Errorf("appending to closed alternative %s", alternativeID)
	}

	block := content.NewBlock(draft.Text, draft.MediaType, draft.Origin)
	if _, err := g.contents.PutBlock(ctx, block); err != nil {
		return nil, fmt.Errorf("interning message content: %w", err)
	}

	msg := &Message{
		ID:            entity.NewID(),
		AlternativeID: alt.ID,
		ContentID:     block.ID,
		AssetIDs:      draft.AssetIDs,
		ToolCalls:     draft.ToolCalls,
		ToolResults:   draft.ToolResults,
		CreatedAt:     time.Now().UTC(),
	}

	if err := g.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	g.publish(ctx, eventstream.New(
		eventstream.EventTypeMessageAppended,
		entity.Ref{Kind: entity.KindAlternative, ID: alt.ID},
		eventstream.Scope{Conversation: alt.ConversationID, Turn: alt.TurnID},
	))

	return msg, nil
}

// CloseAlternative marks an alternative's message sequence complete, making
// it selectable.
func (g *Graph) CloseAlternative(ctx context.Context, alternativeID string) error {
	return g.close(ctx, alternativeID, false, "")
}

// CancelAlternative closes an in-flight alternative as incomplete. The
// truncated sequence stays addressable for diagnostics but is excluded from
// the default pick during path resolution.
func (g *Graph) CancelAlternative(ctx context.Context, alternativeID string, cause string) error {
	if cause == "" {
		cause = "canceled"
	}

	return g.close(ctx, alternativeID, true, cause)
}

func (g *Graph) close(ctx context.Context, alternativeID string, incomplete bool, cause string) error {
	alt, err := g.store.GetAlternative(ctx, alternativeID)
	if err != nil {
		return err
	}

	unlock := g.writers.Lock(alt.ConversationID)
	defer unlock()

	if err := g.store.CloseAlternative(ctx, alternativeID, incomplete, cause); err != nil {
		return fmt.Errorf("closing alternative: %w", err)
	}

	event := eventstream.New(
		eventstream.EventTypeAlternativeClosed,
		entity.Ref{Kind: entity.KindAlternative, ID: alt.ID},
		eventstream.Scope{Conversation: alt.ConversationID, Turn: alt.TurnID},
	)
	event.Incomplete = incomplete
	event.Error = cause
	g.publish(ctx, event)

	return nil
}

// Select pins an alternative at a turn for a view. Regeneration adopts a
// fresh alternative this way; the previously selected one stays addressable
// by other views.
func (g *Graph) Select(ctx context.Context, viewID, turnID, alternativeID string) error {
	view, err := g.store.GetView(ctx, viewID)
	if err != nil {
		return err
	}

	unlock := g.writers.Lock(view.ConversationID)
	defer unlock()

	turn, err := g.store.GetTurn(ctx, turnID)
	if err != nil {
		return err
	}

	if turn.ConversationID != view.ConversationID {
		return ForeignConversationError{ViewID: viewID, TurnID: turnID}
	}

	alt, err := g.store.GetAlternative(ctx, alternativeID)
	if err != nil {
		return err
	}

	if alt.TurnID != turnID {
		return InvalidSelectionError{TurnID: turnID, AlternativeID: alternativeID}
	}

	if !alt.Closed {
		return NotReadyError{AlternativeID: alternativeID}
	}

	sel := &Selection{
		ViewID:        viewID,
		TurnID:        turnID,
		AlternativeID: alternativeID,
		TurnSeq:       turn.Seq,
	}

	if err := g.store.UpsertSelection(ctx, sel); err != nil {
		return fmt.Errorf("updating selection: %w", err)
	}

	// Selecting past a bounded frontier is how a view adopts turns
	// appended after it was forked.
	if view.FrontierSeq > 0 && turn.Seq > view.FrontierSeq {
		if err := g.store.SetViewFrontier(ctx, viewID, turn.Seq); err != nil {
			return fmt.Errorf("advancing view frontier: %w", err)
		}
	}

	g.publish(ctx, eventstream.New(
		eventstream.EventTypeSelectionChanged,
		entity.Ref{Kind: entity.KindView, ID: viewID},
		eventstream.Scope{Conversation: view.ConversationID, View: viewID, Turn: turnID},
	))

	return nil
}

// Fork creates a new view that copies the source view's explicit selections
// up to and including the given turn, then diverges independently. The view
// insert and the selection copies commit as one unit.
//
// Forking bounds the resolution frontier on both sides: the forked view at
// the fork turn, and a still-unbounded source at the conversation's current
// last turn. Turns appended afterwards belong to whichever view selects an
// alternative at them; neither side picks up the other's divergence lazily.
func (g *Graph) Fork(ctx context.Context, viewID, atTurnID, name string) (*View, error) {
	source, err := g.store.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}

	unlock := g.writers.Lock(source.ConversationID)
	defer unlock()

	atTurn, err := g.store.GetTurn(ctx, atTurnID)
	if err != nil {
		return nil, err
	}

	if atTurn.ConversationID != source.ConversationID {
		return nil, ForeignConversationError{ViewID: viewID, TurnID: atTurnID}
	}

	selections, err := g.store.Selections(ctx, viewID)
	if err != nil {
		return nil, fmt.Errorf("loading selections: %w", err)
	}

	forked := &View{
		ID:             entity.NewID(),
		ConversationID: source.ConversationID,
		Name:           name,
		ForkedFrom:     source.ID,
		FrontierSeq:    atTurn.Seq,
		CreatedAt:      time.Now().UTC(),
	}

	copied := make([]*Selection, 0, len(selections))
	for _, sel := range selections {
		if sel.TurnSeq > atTurn.Seq {
			continue
		}

		copied = append(copied, &Selection{
			ViewID:        forked.ID,
			TurnID:        sel.TurnID,
			AlternativeID: sel.AlternativeID,
			TurnSeq:       sel.TurnSeq,
		})
	}

	if err := g.store.ForkView(ctx, forked, copied); err != nil {
		return nil, fmt.Errorf("forking view: %w", err)
	}

	if source.FrontierSeq == 0 {
		turns, err := g.store.Turns(ctx, source.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("loading turns: %w", err)
		}

		last := turns[len(turns)-1].Seq
		if err := g.store.SetViewFrontier(ctx, source.ID, last); err != nil {
			return nil, fmt.Errorf("bounding source view: %w", err)
		}
	}

	g.publish(ctx, eventstream.New(
		eventstream.EventTypeViewForked,
		entity.Ref{Kind: entity.KindView, ID: forked.ID},
		eventstream.Scope{Conversation: source.ConversationID, View: viewID},
	))

	return forked, nil
}

// Truncate discards a view's selections at every turn past the given one.
// This is the explicit opt-in for splice callers that want stale downstream
// selections gone; the engine never discards them implicitly.
func (g *Graph) Truncate(ctx context.Context, viewID, afterTurnID string) error {
	view, err := g.store.GetView(ctx, viewID)
	if err != nil {
		return err
	}

	unlock := g.writers.Lock(view.ConversationID)
	defer unlock()

	turn, err := g.store.GetTurn(ctx, afterTurnID)
	if err != nil {
		return err
	}

	if turn.ConversationID != view.ConversationID {
		return ForeignConversationError{ViewID: viewID, TurnID: afterTurnID}
	}

	if err := g.store.DeleteSelectionsAfter(ctx, viewID, turn.Seq); err != nil {
		return fmt.Errorf("truncating selections: %w", err)
	}

	return nil
}

// SpawnChild creates an ordinary conversation linked back to the parent
// alternative with a spawned_from cross-reference. The child is not a
// variant of the graph itself; only the edge ties it to its origin.
func (g *Graph) SpawnChild(ctx context.Context, parentAlternativeID string, title string) (*Conversation, *View, error) {
	parent, err := g.store.GetAlternative(ctx, parentAlternativeID)
	if err != nil {
		return nil, nil, err
	}

	conv, view, err := g.CreateConversation(ctx, title)
	if err != nil {
		return nil, nil, err
	}

	if g.refs != nil {
		err = g.refs.Reference(ctx,
			entity.Ref{Kind: entity.KindConversation, ID: conv.ID},
			entity.Ref{Kind: entity.KindAlternative, ID: parent.ID},
			reference.RelationSpawnedFrom,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("recording spawned_from edge: %w", err)
		}
	}

	return conv, view, nil
}

// Turns returns a conversation's turns in sequence order.
func (g *Graph) Turns(ctx context.Context, conversationID string) ([]*Turn, error) {
	return g.store.Turns(ctx, conversationID)
}

// AlternativesAt lists every alternative at a turn in insertion order,
// including open and incomplete ones.
func (g *Graph) AlternativesAt(ctx context.Context, turnID string) ([]*Alternative, error) {
	if _, err := g.store.GetTurn(ctx, turnID); err != nil {
		return nil, err
	}

	return g.store.AlternativesByTurn(ctx, turnID)
}

// Views lists a conversation's views.
func (g *Graph) Views(ctx context.Context, conversationID string) ([]*View, error) {
	return g.store.ViewsByConversation(ctx, conversationID)
}

// publish delivers an event after a mutation committed. Delivery failures
// are logged, never propagated: the mutation already happened.
func (g *Graph) publish(ctx context.Context, event *eventstream.Event) {
	if err := g.events.Publish(ctx, event); err != nil {
		g.log.Warn("publishing event failed", "event_type", event.EventType, "error", err)
	}
}
