package gateway

import (
	"sync"
	"time"
)

// TraceEntry is one accepted bus message as seen by the router, before
// handler dispatch.
type TraceEntry struct {
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
	At      time.Time `json:"at"`
}

// Trace is a bounded in-memory ring of recent bus messages, kept for
// operational debugging and exposed on the ops mux.
type Trace struct {
	mu      sync.RWMutex
	entries []TraceEntry
	next    int
	full    bool
}

func NewTrace(capacity int) *Trace {
	if capacity <= 0 {
		capacity = 256
	}
	return &Trace{entries: make([]TraceEntry, capacity)}
}

func (t *Trace) Append(topic string, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[t.next] = TraceEntry{Topic: topic, Payload: string(payload), At: time.Now()}
	t.next++
	if t.next == len(t.entries) {
		t.next = 0
		t.full = true
	}
}

// Recent returns the buffered entries, oldest first.
func (t *Trace) Recent() []TraceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.full {
		out := make([]TraceEntry, t.next)
		copy(out, t.entries[:t.next])
		return out
	}
	out := make([]TraceEntry, 0, len(t.entries))
	out = append(out, t.entries[t.next:]...)
	out = append(out, t.entries[:t.next]...)
	return out
}
