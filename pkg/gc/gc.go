// Package gc implements the periodic content reachability sweep. Structural
// records (turns, alternatives, revisions, items) are never collected; only
// content blocks that nothing references and that have aged past the grace
// window are deleted.
package gc

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
	"github.com/poucet/noema-sub001/pkg/storage"
)

// DefaultGrace is how long an unreferenced block survives before it becomes
// eligible for deletion. It covers the gap between interning a block and the
// message or revision insert that references it.
const DefaultGrace = 24 * time.Hour

// Report summarizes a single sweep.
type Report struct {
	Scanned  int
	Swept    int
	Retained int
	Elapsed  time.Duration
}

// Sweeper walks the structural stores for live content references and
// deletes unreferenced blocks.
type Sweeper struct {
	driver storage.Driver
	events eventstream.Publisher
	log    *slog.Logger
	grace  time.Duration
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithGrace overrides the grace window.
func WithGrace(grace time.Duration) Option {
	return func(s *Sweeper) {
		s.grace = grace
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) {
		s.log = log
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(pub eventstream.Publisher) Option {
	return func(s *Sweeper) {
		s.events = pub
	}
}

// NewSweeper creates a Sweeper over the given driver.
func NewSweeper(driver storage.Driver, opts ...Option) *Sweeper {
	s := &Sweeper{
		driver: driver,
		events: nop.NewPublisher(),
		log:    logger.Nop(),
		grace:  DefaultGrace,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sweep performs one reachability pass. Blocks referenced by any message,
// revision, or collection item are retained, as is every ancestor a retained
// block names through its origin parent chain. Everything else older than
// the grace window is deleted.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	start := time.Now()

	referenced, err := s.collectReferenced(ctx)
	if err != nil {
		return Report{}, err
	}

	// Transitive closure over origin parent links needs the full id->parent
	// map, so build it in the same scan that finds sweep candidates.
	parents := make(map[string]string)
	type candidate struct {
		id        string
		createdAt time.Time
	}

	var (
		scanned    int
		candidates []candidate
	)

	cutoff := start.Add(-s.grace)
	err = s.driver.ScanBlocks(ctx, func(b *content.Block) (bool, error) {
		scanned++
		if b.Origin.ParentID != "" {
			parents[b.ID] = b.Origin.ParentID
		}
		if _, ok := referenced[b.ID]; !ok && b.CreatedAt.Before(cutoff) {
			candidates = append(candidates, candidate{id: b.ID, createdAt: b.CreatedAt})
		}
		return true, nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("scanning blocks: %w", err)
	}

	closeOverParents(referenced, parents)

	var sweep []string
	for _, c := range candidates {
		if _, ok := referenced[c.id]; !ok {
			sweep = append(sweep, c.id)
		}
	}

	swept := 0
	if len(sweep) > 0 {
		swept, err = s.driver.DeleteBlocks(ctx, sweep)
		if err != nil {
			return Report{}, fmt.Errorf("deleting blocks: %w", err)
		}
	}

	report := Report{
		Scanned:  scanned,
		Swept:    swept,
		Retained: scanned - swept,
		Elapsed:  time.Since(start),
	}

	if report.Swept > 0 {
		event := eventstream.New(eventstream.EventTypeContentSwept, entity.Ref{}, eventstream.Scope{})
		event.Swept = report.Swept
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish sweep event", "error", err)
		}
	}

	s.log.Info("content sweep complete",
		"scanned", report.Scanned,
		"swept", report.Swept,
		"retained", report.Retained,
		"elapsed", report.Elapsed)

	return report, nil
}

// collectReferenced gathers every content id the structural stores point at.
func (s *Sweeper) collectReferenced(ctx context.Context) (map[string]struct{}, error) {
	referenced := make(map[string]struct{})

	conversations, err := s.driver.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	for _, conv := range conversations {
		turns, err := s.driver.Turns(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("listing turns: %w", err)
		}
		for _, turn := range turns {
			alternatives, err := s.driver.AlternativesByTurn(ctx, turn.ID)
			if err != nil {
				return nil, fmt.Errorf("listing alternatives: %w", err)
			}
			for _, alt := range alternatives {
				messages, err := s.driver.Messages(ctx, alt.ID)
				if err != nil {
					return nil, fmt.Errorf("listing messages: %w", err)
				}
				for _, msg := range messages {
					referenced[msg.ContentID] = struct{}{}
				}
			}
		}
	}

	documents, err := s.driver.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	for _, doc := range documents {
		revisions, err := s.driver.RevisionsByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("listing revisions: %w", err)
		}
		for _, rev := range revisions {
			referenced[rev.ContentID] = struct{}{}
		}
	}

	collections, err := s.driver.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	for _, coll := range collections {
		items, err := s.driver.Items(ctx, coll.ID)
		if err != nil {
			return nil, fmt.Errorf("listing items: %w", err)
		}
		for _, item := range items {
			if item.Target.Kind == entity.KindContent {
				referenced[item.Target.ID] = struct{}{}
			}
		}
	}

	return referenced, nil
}

// closeOverParents extends referenced with every ancestor reachable through
// origin parent links.
func closeOverParents(referenced map[string]struct{}, parents map[string]string) {
	for id := range referenced {
		for {
			parent, ok := parents[id]
			if !ok {
				break
			}
			if _, seen := referenced[parent]; seen {
				break
			}
			referenced[parent] = struct{}{}
			id = parent
		}
	}
}
