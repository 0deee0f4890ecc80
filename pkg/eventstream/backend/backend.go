// Package backend opens an eventstream.Publisher from configuration.
package backend

import (
	"fmt"

	"github.com/poucet/noema-sub001/pkg/config"
	"github.com/poucet/noema-sub001/pkg/eventstream"
	"github.com/poucet/noema-sub001/pkg/eventstream/kafka"
	"github.com/poucet/noema-sub001/pkg/eventstream/memory"
	"github.com/poucet/noema-sub001/pkg/eventstream/nop"
)

// defaultBuffer is the in-process publisher's channel depth.
const defaultBuffer = 256

// Open returns the publisher selected by cfg.Events.Backend.
func Open(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Backend {
	case "nop", "":
		return nop.NewPublisher(), nil

	case "memory":
		return memory.NewPublisher(defaultBuffer), nil

	case "kafka":
		if len(cfg.Events.Brokers) == 0 {
			return nil, fmt.Errorf("events backend %q requires events.brokers", cfg.Events.Backend)
		}
		return kafka.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic), nil

	default:
		return nil, fmt.Errorf("unknown events backend: %q", cfg.Events.Backend)
	}
}
