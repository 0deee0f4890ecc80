package conversation

import (
	"context"
	"fmt"
)

// ResolvePath walks the view's conversation turn by turn and returns the
// selected alternative and its messages at each position.
//
// Resolution is total and deterministic given the view's selection map and
// the set of closed alternatives: an explicit selection wins; otherwise the
// most recently created closed, complete alternative is chosen, with the
// insertion sequence breaking creation-time ties. Turns with no selectable
// alternative yet (only open or incomplete ones) are omitted from the path,
// as are turns past the view's resolution frontier when one is set: a view
// that was forked, or forked from, does not pick up turns appended for a
// sibling branch until one of its own selections advances the frontier.
//
// ResolvePath takes no writer lock: closed alternatives are immutable and
// turns are append-only, so a concurrent write to an unrelated turn cannot
// invalidate the steps already resolved.
func (g *Graph) ResolvePath(ctx context.Context, viewID string) ([]*Step, error) {
	view, err := g.store.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}

	turns, err := g.store.Turns(ctx, view.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	selections, err := g.store.Selections(ctx, viewID)
	if err != nil {
		return nil, fmt.Errorf("loading selections: %w", err)
	}

	selected := make(map[string]string, len(selections))
	for _, sel := range selections {
		selected[sel.TurnID] = sel.AlternativeID
	}

	path := make([]*Step, 0, len(turns))
	for _, turn := range turns {
		if view.FrontierSeq > 0 && turn.Seq > view.FrontierSeq {
			continue
		}

		alt, err := g.resolveTurn(ctx, turn, selected)
		if err != nil {
			return nil, err
		}
		if alt == nil {
			continue
		}

		messages, err := g.store.Messages(ctx, alt.ID)
		if err != nil {
			return nil, fmt.Errorf("loading messages for alternative %s: %w", alt.ID, err)
		}

		path = append(path, &Step{
			Turn:        turn,
			Alternative: alt,
			Messages:    messages,
		})
	}

	return path, nil
}

// resolveTurn returns the alternative the view shows at one turn, or nil
// when the turn has nothing selectable yet.
func (g *Graph) resolveTurn(ctx context.Context, turn *Turn, selected map[string]string) (*Alternative, error) {
	if altID, ok := selected[turn.ID]; ok {
		alt, err := g.store.GetAlternative(ctx, altID)
		if err != nil {
			// A selection pointing at a missing alternative is a
			// structural-consistency violation, not a recoverable
			// condition.
			return nil, fmt.Errorf("selection at turn %s references alternative %s: %w", turn.ID, altID, err)
		}

		return alt, nil
	}

	alts, err := g.store.AlternativesByTurn(ctx, turn.ID)
	if err != nil {
		return nil, fmt.Errorf("loading alternatives for turn %s: %w", turn.ID, err)
	}

	return latestComplete(alts), nil
}

// latestComplete picks the default alternative for an unpinned turn: the
// closed, complete one with the highest creation timestamp, breaking ties by
// insertion sequence. Returns nil when nothing qualifies.
func latestComplete(alts []*Alternative) *Alternative {
	var best *Alternative

	for _, alt := range alts {
		if !alt.Closed || alt.Incomplete {
			continue
		}

		if best == nil {
			best = alt
			continue
		}

		if alt.CreatedAt.After(best.CreatedAt) {
			best = alt
			continue
		}

		if alt.CreatedAt.Equal(best.CreatedAt) && alt.Seq > best.Seq {
			best = alt
		}
	}

	return best
}
