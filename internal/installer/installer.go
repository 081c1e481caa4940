package installer

import (
	"sync"

	"github.com/rs/zerolog"

	"setupd/pkg/types"
)

// Installer owns the installation state, the log sink, the event bus and the
// single child process. All state transitions happen under mu, and events are
// published under the same lock so every observer sees them in state order.
type Installer struct {
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	state      stateRecord
	job        *job
	classifier *Classifier
	publisher  EventPublisher

	sink *LogSink
	bus  *Bus
}

// Snapshot returns a copy of the current installation state.
func (i *Installer) Snapshot() types.InstallationState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.snapshot()
}

// Running reports whether a run is in progress.
func (i *Installer) Running() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state.status == StatusRunning
}

// Logs returns up to the last n log entries, oldest first.
func (i *Installer) Logs(n int) []types.LogEntry { return i.sink.Tail(n) }

// LogCapacity is the maximum number of retained log entries.
func (i *Installer) LogCapacity() int { return i.sink.Cap() }

// Subscribe registers a new observer. The snapshot is taken under the state
// lock, so no event can fall between the snapshot and the first queued event.
func (i *Installer) Subscribe() *Subscription {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bus.Subscribe(i.state.snapshot())
}

// Unsubscribe removes an observer; safe to call more than once.
func (i *Installer) Unsubscribe(s *Subscription) { i.bus.Unsubscribe(s) }

// Subscribers is the number of live subscriptions.
func (i *Installer) Subscribers() int { return i.bus.Len() }

// SetEventPublisher installs an additional synchronous observer.
func (i *Installer) SetEventPublisher(p EventPublisher) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if p == nil {
		i.publisher = noopPublisher{}
		return
	}
	i.publisher = p
}
