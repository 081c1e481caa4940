package types

import "encoding/json"

// EventType discriminates the Event union on the wire.
type EventType string

const (
	EventLog      EventType = "log"
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	// EventSnapshot is only sent as the first frame of a subscription.
	EventSnapshot EventType = "snapshot"
)

// Event is a transient notification relayed to live subscribers.
// Only the fields belonging to Type are encoded.
type Event struct {
	Type EventType

	// log
	Message string
	Level   string
	Time    string

	// progress
	Progress    int
	CurrentTask string

	// status
	Status string
	Error  string

	// snapshot
	State *InstallationState
}

// LogEvent builds a log event.
func LogEvent(e LogEntry) Event {
	return Event{Type: EventLog, Message: e.Message, Level: e.Level, Time: e.Time}
}

// ProgressEvent builds a progress event.
func ProgressEvent(progress int, task string) Event {
	return Event{Type: EventProgress, Progress: progress, CurrentTask: task}
}

// StatusEvent builds a status event; errMsg may be empty.
func StatusEvent(status, errMsg string) Event {
	return Event{Type: EventStatus, Status: status, Error: errMsg}
}

// SnapshotEvent wraps a state snapshot as the initial frame of a stream.
func SnapshotEvent(st InstallationState) Event {
	return Event{Type: EventSnapshot, State: &st}
}

// Terminal reports whether the event announces the end of a run.
func (e Event) Terminal() bool {
	if e.Type != EventStatus {
		return false
	}
	switch e.Status {
	case "completed", "error", "cancelled":
		return true
	}
	return false
}

type logWire struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Level   string    `json:"level"`
	Time    string    `json:"time,omitempty"`
}

type progressWire struct {
	Type        EventType `json:"type"`
	Progress    int       `json:"progress"`
	CurrentTask string    `json:"current_task"`
}

type statusWire struct {
	Type   EventType `json:"type"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

type snapshotWire struct {
	Type EventType `json:"type"`
	InstallationState
}

// MarshalJSON encodes the event as a flat object tagged with "type".
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventLog:
		return json.Marshal(logWire{Type: e.Type, Message: e.Message, Level: e.Level, Time: e.Time})
	case EventProgress:
		return json.Marshal(progressWire{Type: e.Type, Progress: e.Progress, CurrentTask: e.CurrentTask})
	case EventStatus:
		return json.Marshal(statusWire{Type: e.Type, Status: e.Status, Error: e.Error})
	case EventSnapshot:
		var st InstallationState
		if e.State != nil {
			st = *e.State
		}
		return json.Marshal(snapshotWire{Type: e.Type, InstallationState: st})
	default:
		return json.Marshal(map[string]any{"type": e.Type})
	}
}

// UnmarshalJSON decodes any of the wire shapes produced by MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	*e = Event{Type: probe.Type}
	switch probe.Type {
	case EventLog:
		var w logWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		e.Message, e.Level, e.Time = w.Message, w.Level, w.Time
	case EventProgress:
		var w progressWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		e.Progress, e.CurrentTask = w.Progress, w.CurrentTask
	case EventStatus:
		var w statusWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		e.Status, e.Error = w.Status, w.Error
	case EventSnapshot:
		var w snapshotWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		st := w.InstallationState
		e.State = &st
	}
	return nil
}
