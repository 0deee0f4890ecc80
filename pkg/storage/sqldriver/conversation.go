package sqldriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/poucet/noema-sub001/pkg/conversation"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// CreateConversation inserts a conversation.
func (d *Driver) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	if c == nil {
		return errors.New("cannot store nil conversation")
	}

	query := `INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)`

	_, err := d.DB.ExecContext(ctx, d.rebind(query), c.ID, c.Title, fmtTime(c.CreatedAt))
	return storage.Unavailable("create conversation", err)
}

// GetConversation retrieves a conversation by id.
func (d *Driver) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	query := `SELECT id, title, created_at FROM conversations WHERE id = ?`

	var (
		c         conversation.Conversation
		createdAt string
	)

	err := d.DB.QueryRowContext(ctx, d.rebind(query), id).Scan(&c.ID, &c.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindConversation, ID: id}}
	}
	if err != nil {
		return nil, storage.Unavailable("get conversation", err)
	}

	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListConversations returns all conversations ordered by creation.
func (d *Driver) ListConversations(ctx context.Context) ([]*conversation.Conversation, error) {
	query := `SELECT id, title, created_at FROM conversations ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("list conversations", err)
	}
	defer rows.Close()

	var result []*conversation.Conversation
	for rows.Next() {
		var (
			c         conversation.Conversation
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Title, &createdAt); err != nil {
			return nil, storage.Unavailable("list conversations", err)
		}
		c.CreatedAt = parseTime(createdAt)
		result = append(result, &c)
	}

	return result, storage.Unavailable("list conversations", rows.Err())
}

// AppendTurn inserts a turn, assigning the next sequence number within its
// conversation in the same transaction. The UNIQUE(conversation_id, seq)
// constraint backstops the engine's per-conversation write serialization.
func (d *Driver) AppendTurn(ctx context.Context, t *conversation.Turn) error {
	if t == nil {
		return errors.New("cannot store nil turn")
	}

	return d.inTx(ctx, "append turn", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			d.rebind(`SELECT 1 FROM conversations WHERE id = ?`), t.ConversationID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindConversation, ID: t.ConversationID}}
		}
		if err != nil {
			return storage.Unavailable("append turn", err)
		}

		err = tx.QueryRowContext(ctx,
			d.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = ?`),
			t.ConversationID).Scan(&t.Seq)
		if err != nil {
			return storage.Unavailable("append turn", err)
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`INSERT INTO turns (id, conversation_id, seq, role, created_at) VALUES (?, ?, ?, ?, ?)`),
			t.ID, t.ConversationID, t.Seq, string(t.Role), fmtTime(t.CreatedAt))
		return storage.Unavailable("append turn", err)
	})
}

// GetTurn retrieves a turn by id.
func (d *Driver) GetTurn(ctx context.Context, id string) (*conversation.Turn, error) {
	query := `SELECT id, conversation_id, seq, role, created_at FROM turns WHERE id = ?`

	var (
		t         conversation.Turn
		role      string
		createdAt string
	)

	err := d.DB.QueryRowContext(ctx, d.rebind(query), id).
		Scan(&t.ID, &t.ConversationID, &t.Seq, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindTurn, ID: id}}
	}
	if err != nil {
		return nil, storage.Unavailable("get turn", err)
	}

	t.Role = conversation.Role(role)
	t.CreatedAt = parseTime(createdAt)

	return &t, nil
}

// Turns returns a conversation's turns in sequence order.
func (d *Driver) Turns(ctx context.Context, conversationID string) ([]*conversation.Turn, error) {
	query := `SELECT id, conversation_id, seq, role, created_at FROM turns WHERE conversation_id = ? ORDER BY seq`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), conversationID)
	if err != nil {
		return nil, storage.Unavailable("list turns", err)
	}
	defer rows.Close()

	var result []*conversation.Turn
	for rows.Next() {
		var (
			t         conversation.Turn
			role      string
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Seq, &role, &createdAt); err != nil {
			return nil, storage.Unavailable("list turns", err)
		}
		t.Role = conversation.Role(role)
		t.CreatedAt = parseTime(createdAt)
		result = append(result, &t)
	}

	return result, storage.Unavailable("list turns", rows.Err())
}

// CreateAlternative inserts an open alternative, assigning its insertion
// sequence at the turn in the same transaction.
func (d *Driver) CreateAlternative(ctx context.Context, a *conversation.Alternative) error {
	if a == nil {
		return errors.New("cannot store nil alternative")
	}

	return d.inTx(ctx, "create alternative", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT 1 FROM turns WHERE id = ?`), a.TurnID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindTurn, ID: a.TurnID}}
		}
		if err != nil {
			return storage.Unavailable("create alternative", err)
		}

		err = tx.QueryRowContext(ctx,
			d.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM alternatives WHERE turn_id = ?`),
			a.TurnID).Scan(&a.Seq)
		if err != nil {
			return storage.Unavailable("create alternative", err)
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`INSERT INTO alternatives (id, turn_id, conversation_id, seq, model_id, closed, incomplete, error, created_at, closed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			a.ID, a.TurnID, a.ConversationID, a.Seq, a.ModelID,
			boolToInt(a.Closed), boolToInt(a.Incomplete), a.Error,
			fmtTime(a.CreatedAt), fmtTimePtr(a.ClosedAt))
		return storage.Unavailable("create alternative", err)
	})
}

// GetAlternative retrieves an alternative by id.
func (d *Driver) GetAlternative(ctx context.Context, id string) (*conversation.Alternative, error) {
	query := `SELECT id, turn_id, conversation_id, seq, model_id, closed, incomplete, error, created_at, closed_at FROM alternatives WHERE id = ?`

	alt, err := scanAlternative(d.DB.QueryRowContext(ctx, d.rebind(query), id))
	var nf entity.NotFoundError
	if errors.As(err, &nf) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative, ID: id}}
	}

	return alt, err
}

// AlternativesByTurn returns a turn's alternatives in insertion order.
func (d *Driver) AlternativesByTurn(ctx context.Context, turnID string) ([]*conversation.Alternative, error) {
	query := `SELECT id, turn_id, conversation_id, seq, model_id, closed, incomplete, error, created_at, closed_at FROM alternatives WHERE turn_id = ? ORDER BY seq`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), turnID)
	if err != nil {
		return nil, storage.Unavailable("list alternatives", err)
	}
	defer rows.Close()

	var result []*conversation.Alternative
	for rows.Next() {
		alt, err := scanAlternative(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, alt)
	}

	return result, storage.Unavailable("list alternatives", rows.Err())
}

// CloseAlternative marks an alternative closed. Closing twice is an error.
func (d *Driver) CloseAlternative(ctx context.Context, id string, incomplete bool, closeErr string) error {
	return d.inTx(ctx, "close alternative", func(tx *sql.Tx) error {
		var closed int
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT closed FROM alternatives WHERE id = ?`), id).Scan(&closed)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative, ID: id}}
		}
		if err != nil {
			return storage.Unavailable("close alternative", err)
		}

		if closed != 0 {
			return fmt.Errorf("alternative %s is already closed", id)
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`UPDATE alternatives SET closed = 1, incomplete = ?, error = ?, closed_at = ? WHERE id = ?`),
			boolToInt(incomplete), closeErr, fmtTime(time.Now()), id)
		return storage.Unavailable("close alternative", err)
	})
}

// AppendMessage inserts a message into an open alternative, assigning its
// sequence in the same transaction.
func (d *Driver) AppendMessage(ctx context.Context, m *conversation.Message) error {
	if m == nil {
		return errors.New("cannot store nil message")
	}

	assetJSON, err := json.Marshal(orEmpty(m.AssetIDs))
	if err != nil {
		return fmt.Errorf("marshaling asset ids: %w", err)
	}

	callsJSON, err := json.Marshal(orEmpty(m.ToolCalls))
	if err != nil {
		return fmt.Errorf("marshaling tool calls: %w", err)
	}

	resultsJSON, err := json.Marshal(orEmpty(m.ToolResults))
	if err != nil {
		return fmt.Errorf("marshaling tool results: %w", err)
	}

	return d.inTx(ctx, "append message", func(tx *sql.Tx) error {
		var closed int
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT closed FROM alternatives WHERE id = ?`), m.AlternativeID).Scan(&closed)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative, ID: m.AlternativeID}}
		}
		if err != nil {
			return storage.Unavailable("append message", err)
		}

		if closed != 0 {
			return fmt.Errorf("alternative %s is closed", m.AlternativeID)
		}

		err = tx.QueryRowContext(ctx,
			d.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE alternative_id = ?`),
			m.AlternativeID).Scan(&m.Seq)
		if err != nil {
			return storage.Unavailable("append message", err)
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`INSERT INTO messages (id, alternative_id, seq, content_id, asset_ids, tool_calls, tool_results, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			m.ID, m.AlternativeID, m.Seq, m.ContentID,
			string(assetJSON), string(callsJSON), string(resultsJSON), fmtTime(m.CreatedAt))
		return storage.Unavailable("append message", err)
	})
}

// Messages returns an alternative's messages in sequence order.
func (d *Driver) Messages(ctx context.Context, alternativeID string) ([]*conversation.Message, error) {
	query := `SELECT id, alternative_id, seq, content_id, asset_ids, tool_calls, tool_results, created_at FROM messages WHERE alternative_id = ? ORDER BY seq`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), alternativeID)
	if err != nil {
		return nil, storage.Unavailable("list messages", err)
	}
	defer rows.Close()

	var result []*conversation.Message
	for rows.Next() {
		var (
			m           conversation.Message
			assetJSON   string
			callsJSON   string
			resultsJSON string
			createdAt   string
		)
		if err := rows.Scan(&m.ID, &m.AlternativeID, &m.Seq, &m.ContentID, &assetJSON, &callsJSON, &resultsJSON, &createdAt); err != nil {
			return nil, storage.Unavailable("list messages", err)
		}

		if err := json.Unmarshal([]byte(assetJSON), &m.AssetIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling asset ids: %w", err)
		}
		if err := json.Unmarshal([]byte(callsJSON), &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("unmarshaling tool calls: %w", err)
		}
		if err := json.Unmarshal([]byte(resultsJSON), &m.ToolResults); err != nil {
			return nil, fmt.Errorf("unmarshaling tool results: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)

		if len(m.AssetIDs) == 0 {
			m.AssetIDs = nil
		}
		if len(m.ToolCalls) == 0 {
			m.ToolCalls = nil
		}
		if len(m.ToolResults) == 0 {
			m.ToolResults = nil
		}

		result = append(result, &m)
	}

	return result, storage.Unavailable("list messages", rows.Err())
}

// CreateView inserts a view.
func (d *Driver) CreateView(ctx context.Context, v *conversation.View) error {
	if v == nil {
		return errors.New("cannot store nil view")
	}

	query := `INSERT INTO views (id, conversation_id, name, forked_from, frontier_seq, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := d.DB.ExecContext(ctx, d.rebind(query),
		v.ID, v.ConversationID, v.Name, v.ForkedFrom, v.FrontierSeq, fmtTime(v.CreatedAt))
	return storage.Unavailable("create view", err)
}

// GetView retrieves a view by id.
func (d *Driver) GetView(ctx context.Context, id string) (*conversation.View, error) {
	query := `SELECT id, conversation_id, name, forked_from, frontier_seq, created_at FROM views WHERE id = ?`

	var (
		v         conversation.View
		createdAt string
	)

	err := d.DB.QueryRowContext(ctx, d.rebind(query), id).
		Scan(&v.ID, &v.ConversationID, &v.Name, &v.ForkedFrom, &v.FrontierSeq, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: id}}
	}
	if err != nil {
		return nil, storage.Unavailable("get view", err)
	}

	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}

// ViewsByConversation returns a conversation's views ordered by creation.
func (d *Driver) ViewsByConversation(ctx context.Context, conversationID string) ([]*conversation.View, error) {
	query := `SELECT id, conversation_id, name, forked_from, frontier_seq, created_at FROM views WHERE conversation_id = ? ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), conversationID)
	if err != nil {
		return nil, storage.Unavailable("list views", err)
	}
	defer rows.Close()

	var result []*conversation.View
	for rows.Next() {
		var (
			v         conversation.View
			createdAt string
		)
		if err := rows.Scan(&v.ID, &v.ConversationID, &v.Name, &v.ForkedFrom, &v.FrontierSeq, &createdAt); err != nil {
			return nil, storage.Unavailable("list views", err)
		}
		v.CreatedAt = parseTime(createdAt)
		result = append(result, &v)
	}

	return result, storage.Unavailable("list views", rows.Err())
}

// SetViewFrontier updates a view's resolution frontier.
func (d *Driver) SetViewFrontier(ctx context.Context, viewID string, seq int) error {
	query := `UPDATE views SET frontier_seq = ? WHERE id = ?`

	res, err := d.DB.ExecContext(ctx, d.rebind(query), seq, viewID)
	if err != nil {
		return storage.Unavailable("set view frontier", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Unavailable("set view frontier", err)
	}
	if affected == 0 {
		return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindView, ID: viewID}}
	}

	return nil
}

// UpsertSelection inserts or replaces the selection for (view, turn).
func (d *Driver) UpsertSelection(ctx context.Context, sel *conversation.Selection) error {
	if sel == nil {
		return errors.New("cannot store nil selection")
	}

	var query string
	if d.Dialect == DialectPostgres {
		query = `INSERT INTO selections (view_id, turn_id, alternative_id, turn_seq) VALUES (?, ?, ?, ?) ON CONFLICT (view_id, turn_id) DO UPDATE SET alternative_id = EXCLUDED.alternative_id, turn_seq = EXCLUDED.turn_seq`
	} else {
		query = `INSERT OR REPLACE INTO selections (view_id, turn_id, alternative_id, turn_seq) VALUES (?, ?, ?, ?)`
	}

	_, err := d.DB.ExecContext(ctx, d.rebind(query),
		sel.ViewID, sel.TurnID, sel.AlternativeID, sel.TurnSeq)
	return storage.Unavailable("upsert selection", err)
}

// Selections returns a view's selections ordered by turn sequence.
func (d *Driver) Selections(ctx context.Context, viewID string) ([]*conversation.Selection, error) {
	if _, err := d.GetView(ctx, viewID); err != nil {
		return nil, err
	}

	query := `SELECT view_id, turn_id, alternative_id, turn_seq FROM selections WHERE view_id = ? ORDER BY turn_seq`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), viewID)
	if err != nil {
		return nil, storage.Unavailable("list selections", err)
	}
	defer rows.Close()

	var result []*conversation.Selection
	for rows.Next() {
		var sel conversation.Selection
		if err := rows.Scan(&sel.ViewID, &sel.TurnID, &sel.AlternativeID, &sel.TurnSeq); err != nil {
			return nil, storage.Unavailable("list selections", err)
		}
		result = append(result, &sel)
	}

	return result, storage.Unavailable("list selections", rows.Err())
}

// ForkView inserts the view and its copied selections in one transaction,
// so a crash can never expose a half-forked view.
func (d *Driver) ForkView(ctx context.Context, v *conversation.View, selections []*conversation.Selection) error {
	if v == nil {
		return errors.New("cannot store nil view")
	}

	return d.inTx(ctx, "fork view", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			d.rebind(`INSERT INTO views (id, conversation_id, name, forked_from, frontier_seq, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			v.ID, v.ConversationID, v.Name, v.ForkedFrom, v.FrontierSeq, fmtTime(v.CreatedAt))
		if err != nil {
			return storage.Unavailable("fork view", err)
		}

		for _, sel := range selections {
			_, err := tx.ExecContext(ctx,
				d.rebind(`INSERT INTO selections (view_id, turn_id, alternative_id, turn_seq) VALUES (?, ?, ?, ?)`),
				v.ID, sel.TurnID, sel.AlternativeID, sel.TurnSeq)
			if err != nil {
				return storage.Unavailable("fork view", err)
			}
		}

		return nil
	})
}

// DeleteSelectionsAfter removes a view's selections past the given turn
// sequence in one statement.
func (d *Driver) DeleteSelectionsAfter(ctx context.Context, viewID string, afterSeq int) error {
	if _, err := d.GetView(ctx, viewID); err != nil {
		return err
	}

	query := `DELETE FROM selections WHERE view_id = ? AND turn_seq > ?`

	_, err := d.DB.ExecContext(ctx, d.rebind(query), viewID, afterSeq)
	return storage.Unavailable("truncate selections", err)
}

func scanAlternative(row rowScanner) (*conversation.Alternative, error) {
	var (
		a          conversation.Alternative
		closed     int
		incomplete int
		createdAt  string
		closedAt   sql.NullString
	)

	err := row.Scan(&a.ID, &a.TurnID, &a.ConversationID, &a.Seq, &a.ModelID,
		&closed, &incomplete, &a.Error, &createdAt, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindAlternative}}
	}
	if err != nil {
		return nil, storage.Unavailable("scan alternative", err)
	}

	a.Closed = closed != 0
	a.Incomplete = incomplete != 0
	a.CreatedAt = parseTime(createdAt)
	a.ClosedAt = parseTimePtr(closedAt)

	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

// orEmpty keeps nil slices out of the JSON columns so they round-trip as [].
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
