package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/poucet/noema-sub001/pkg/conversation"
	"github.com/poucet/noema-sub001/pkg/entity"
)

// CreateConversation inserts a conversation.
func (d *Driver) CreateConversation(_ context.Context, c *conversation.Conversation) error {
	if c == nil {
		return errors.New("cannot store nil conversation")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[c.ID]; ok {
		return fmt.Errorf("conversation %s already exists", c.ID)
	}

	stored := *c
	d.conversations[c.ID] = &stored
	d.convOrder = append(d.convOrder, c.ID)

	return nil
}

// GetConversation retrieves a conversation by id.
func (d *Driver) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.conversations[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindConversation, ID: id}}
	}

	copied := *c
	return &copied, nil
}

// ListConversations returns all conversations in insertion order.
func (d *Driver) ListConversations(_ context.Context) ([]*conversation.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*conversation.Conversation, 0, len(d.convOrder))
	for _, id := range d.convOrder {
		copied := *d.conversations[id]
		result = append(result, &copied)
	}

	return result, nil
}

// AppendTurn inserts a turn with the next sequence number in its
// conversation. Assignment and insert happen under one lock.
func (d *Driver) AppendTurn(_ context.Context, t *conversation.Turn) error {
	if t == nil {
		return errors.New("cannot store nil turn")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[t.ConversationID]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindConversation, ID: t.ConversationID}}
	}

	t.Seq = len(d.turnsByConv[t.ConversationID]) + 1

	stored := *t
	d.turns[t.ID] = &stored
	d.turnsByConv[t.ConversationID] = append(d.turnsByConv[t.ConversationID], t.ID)

	return nil
}

// GetTurn retrieves a turn by id.
func (d *Driver) GetTurn(_ context.Context, id string) (*conversation.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.turns[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindTurn, ID: id}}
	}

	copied := *t
	return &copied, nil
}

// Turns returns a conversation's turns in sequence order.
func (d *Driver) Turns(_ context.Context, conversationID string) ([]*conversation.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.turnsByConv[conversationID]
	result := make([]*conversation.Turn, 0, len(ids))
	for _, id := range ids {
		copied := *d.turns[id]
		result = append(result, &copied)
	}

	return result, nil
}

// CreateAlternative inserts an open alternative with the next insertion
// sequence at its turn.
func (d *Driver) CreateAlternative(_ context.Context, a *conversation.Alternative) error {
	if a == nil {
		return errors.New("cannot store nil alternative")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.turns[a.TurnID]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindTurn, ID: a.TurnID}}
	}

	a.Seq = len(d.altsByTurn[a.TurnID]) + 1

	stored := *a
	d.alternatives[a.ID] = &stored
	d.altsByTurn[a.TurnID] = append(d.altsByTurn[a.TurnID], a.ID)

	return nil
}

// GetAlternative retrieves an alternative by id.
func (d *Driver) GetAlternative(_ context.Context, id string) (*conversation.Alternative, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.alternatives[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative, ID: id}}
	}

	copied := *a
	return &copied, nil
}

// AlternativesByTurn returns a turn's alternatives in insertion order.
func (d *Driver) AlternativesByTurn(_ context.Context, turnID string) ([]*conversation.Alternative, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.altsByTurn[turnID]
	result := make([]*conversation.Alternative, 0, len(ids))
	for _, id := range ids {
		copied := *d.alternatives[id]
		result = append(result, &copied)
	}

	return result, nil
}

// CloseAlternative marks an alternative closed.
func (d *Driver) CloseAlternative(_ context.Context, id string, incomplete bool, closeErr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.alternatives[id]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative, ID: id}}
	}

	if a.Closed {
		return fmt.Errorf("alternative %s is already closed", id)
	}

	now := time.Now().UTC()
	a.Closed = true
	a.Incomplete = incomplete
	a.Error = closeErr
	a.ClosedAt = &now

	return nil
}

// AppendMessage inserts a message into an open alternative.
func (d *Driver) AppendMessage(_ context.Context, m *conversation.Message) error {
	if m == nil {
		return errors.New("cannot store nil message")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.alternatives[m.AlternativeID]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative, ID: m.AlternativeID}}
	}

	if a.Closed {
		return fmt.Errorf("alternative %s is closed", m.AlternativeID)
	}

	m.Seq = len(d.msgsByAlt[m.AlternativeID]) + 1

	stored := *m
	d.messages[m.ID] = &stored
	d.msgsByAlt[m.AlternativeID] = append(d.msgsByAlt[m.AlternativeID], m.ID)

	return nil
}

// Messages returns an alternative's messages in sequence order.
func (d *Driver) Messages(_ context.Context, alternativeID string) ([]*conversation.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.msgsByAlt[alternativeID]
	result := make([]*conversation.Message, 0, len(ids))
	for _, id := range ids {
		copied := *d.messages[id]
		result = append(result, &copied)
	}

	return result, nil
}

// CreateView inserts a view.
func (d *Driver) CreateView(_ context.Context, v *conversation.View) error {
	if v == nil {
		return errors.New("cannot store nil view")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.insertViewLocked(v)
}

func (d *Driver) insertViewLocked(v *conversation.View) error {
	if _, ok := d.conversations[v.ConversationID]; !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindConversation, ID: v.ConversationID}}
	}

	if _, ok := d.views[v.ID]; ok {
		return fmt.Errorf("view %s already exists", v.ID)
	}

	stored := *v
	d.views[v.ID] = &stored
	d.viewsByConv[v.ConversationID] = append(d.viewsByConv[v.ConversationID], v.ID)
	d.selections[v.ID] = make(map[string]*conversation.Selection)

	return nil
}

// GetView retrieves a view by id.
func (d *Driver) GetView(_ context.Context, id string) (*conversation.View, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.views[id]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: id}}
	}

	copied := *v
	return &copied, nil
}

// ViewsByConversation returns a conversation's views in insertion order.
func (d *Driver) ViewsByConversation(_ context.Context, conversationID string) ([]*conversation.View, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.viewsByConv[conversationID]
	result := make([]*conversation.View, 0, len(ids))
	for _, id := range ids {
		copied := *d.views[id]
		result = append(result, &copied)
	}

	return result, nil
}

// SetViewFrontier updates a view's resolution frontier.
func (d *Driver) SetViewFrontier(_ context.Context, viewID string, seq int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.views[viewID]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: viewID}}
	}

	v.FrontierSeq = seq
	return nil
}

// UpsertSelection inserts or replaces the selection for (view, turn).
func (d *Driver) UpsertSelection(_ context.Context, sel *conversation.Selection) error {
	if sel == nil {
		return errors.New("cannot store nil selection")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	byTurn, ok := d.selections[sel.ViewID]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: sel.ViewID}}
	}

	stored := *sel
	byTurn[sel.TurnID] = &stored

	return nil
}

// Selections returns a view's selections ordered by turn sequence.
func (d *Driver) Selections(_ context.Context, viewID string) ([]*conversation.Selection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byTurn, ok := d.selections[viewID]
	if !ok {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: viewID}}
	}

	result := make([]*conversation.Selection, 0, len(byTurn))
	for _, sel := range byTurn {
		copied := *sel
		result = append(result, &copied)
	}

	sortSelections(result)
	return result, nil
}

// ForkView inserts the view and its copied selections under one lock.
func (d *Driver) ForkView(_ context.Context, v *conversation.View, selections []*conversation.Selection) error {
	if v == nil {
		return errors.New("cannot store nil view")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.insertViewLocked(v); err != nil {
		return err
	}

	byTurn := d.selections[v.ID]
	for _, sel := range selections {
		copied := *sel
		byTurn[sel.TurnID] = &copied
	}

	return nil
}

// DeleteSelectionsAfter removes a view's selections past the given turn
// sequence.
func (d *Driver) DeleteSelectionsAfter(_ context.Context, viewID string, afterSeq int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	byTurn, ok := d.selections[viewID]
	if !ok {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: viewID}}
	}

	for turnID, sel := range byTurn {
		if sel.TurnSeq > afterSeq {
			delete(byTurn, turnID)
		}
	}

	return nil
}

func sortSelections(sels []*conversation.Selection) {
	sort.Slice(sels, func(i, j int) bool {
		return sels[i].TurnSeq < sels[j].TurnSeq
	})
}
