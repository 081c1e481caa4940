package installer

import "setupd/pkg/types"

// EventPublisher receives every event the installer emits, in order, while the
// installer lock is held. Implementations must be non-blocking and must not panic.
type EventPublisher interface {
	Publish(types.Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(types.Event) {}
