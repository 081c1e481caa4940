package installer

import (
	"sync"
	"time"

	"setupd/pkg/types"
)

// Log levels recorded in the sink.
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// LogSink is an append-only FIFO buffer of log entries. Once full, the oldest
// entry is evicted for every new one.
type LogSink struct {
	mu    sync.Mutex
	buf   []types.LogEntry
	start int // index of the oldest entry
	n     int
	now   func() time.Time
}

// NewLogSink returns a sink holding at most capacity entries.
func NewLogSink(capacity int) *LogSink {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &LogSink{buf: make([]types.LogEntry, capacity), now: time.Now}
}

// Append records msg and returns the stored entry.
func (s *LogSink) Append(level, msg string) types.LogEntry {
	e := types.LogEntry{
		Time:    s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Level:   level,
		Message: msg,
	}
	s.mu.Lock()
	if s.n < len(s.buf) {
		s.buf[(s.start+s.n)%len(s.buf)] = e
		s.n++
	} else {
		s.buf[s.start] = e
		s.start = (s.start + 1) % len(s.buf)
	}
	s.mu.Unlock()
	logLinesTotal.WithLabelValues(level).Inc()
	return e
}

// Tail returns up to the last n entries, oldest first. n <= 0 returns all.
func (s *LogSink) Tail(n int) []types.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > s.n {
		n = s.n
	}
	out := make([]types.LogEntry, n)
	first := s.start + s.n - n
	for i := 0; i < n; i++ {
		out[i] = s.buf[(first+i)%len(s.buf)]
	}
	return out
}

// Len is the number of stored entries.
func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Cap is the maximum number of stored entries.
func (s *LogSink) Cap() int { return len(s.buf) }
