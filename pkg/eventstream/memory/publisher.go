// Package memory provides an in-process eventstream publisher backed by
// buffered channels. The desktop shell subscribes to it for progress
// notifications (message appended, alternative closed) while the
// orchestration layer streams a response.
package memory

import (
	"context"
	"sync"

	"github.com/poucet/noema-sub001/pkg/eventstream"
)

// Publisher fans events out to subscriber channels.
type Publisher struct {
	mu     sync.Mutex
	subs   []chan *eventstream.Event
	buffer int
	closed bool
}

// NewPublisher creates an in-process publisher. Each subscriber gets its own
// channel with the given buffer size.
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}

	return &Publisher{buffer: buffer}
}

// Subscribe registers a new subscriber and returns its channel. The channel
// is closed when the publisher closes.
func (p *Publisher) Subscribe() <-chan *eventstream.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan *eventstream.Event, p.buffer)
	if p.closed {
		close(ch)
		return ch
	}

	p.subs = append(p.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber. A subscriber whose buffer
// is full misses the event rather than blocking the write path; consumers
// that cannot keep up are expected to re-read state, not to replay events.
func (p *Publisher) Publish(_ context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	for _, ch := range p.subs {
		select {
		case ch <- event:
		default:
		}
	}

	return nil
}

// Close closes all subscriber channels. Subsequent publishes are dropped.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil

	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
