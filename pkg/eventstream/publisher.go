package eventstream

import "context"

// Publisher publishes structural mutation events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
