package installer

import (
	"sync"

	"github.com/google/uuid"

	"setupd/pkg/types"
)

// Subscription is one observer's private, bounded event queue.
type Subscription struct {
	ID string
	// C delivers events in publish order. It is closed on Unsubscribe.
	C <-chan types.Event
	// Snapshot is the installation state at the moment of subscribing.
	Snapshot types.InstallationState

	ch chan types.Event
}

// Bus fans events out to every registered subscription without ever blocking
// the publisher: a full subscriber queue drops the event for that subscriber.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	size int
}

// NewBus returns a bus whose subscriber queues hold size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = defaultSubscriberBuffer
	}
	return &Bus{subs: make(map[*Subscription]struct{}), size: size}
}

// Subscribe registers a new queue carrying snapshot as its initial context.
func (b *Bus) Subscribe(snapshot types.InstallationState) *Subscription {
	ch := make(chan types.Event, b.size)
	s := &Subscription{ID: uuid.NewString(), C: ch, Snapshot: snapshot, ch: ch}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()
	subscribersGauge.Set(float64(n))
	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is a no-op.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
	n := len(b.subs)
	b.mu.Unlock()
	subscribersGauge.Set(float64(n))
}

// Publish delivers e to every subscriber that has room for it.
func (b *Bus) Publish(e types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			// Drop if subscriber is slow.
			eventsDroppedTotal.Inc()
			if e.Terminal() {
				// The run is over for this observer either way; ending the
				// queue makes its stream finish instead of idling on keepalives.
				delete(b.subs, s)
				close(s.ch)
			}
		}
	}
}

// Len is the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll unsubscribes everyone, ending their streams.
func (b *Bus) CloseAll() {
	b.mu.Lock()
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	b.mu.Unlock()
	subscribersGauge.Set(0)
}
