package testutil

import (
	"sync"

	"dirkeep/internal/dk"
)

// RecordingEvents captures every event sent to it. Safe for concurrent use.
type RecordingEvents struct {
	mu     sync.Mutex
	events []any
}

func NewRecordingEvents() *RecordingEvents {
	return &RecordingEvents{}
}

func (r *RecordingEvents) Send(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// All returns a copy of the recorded events in arrival order.
func (r *RecordingEvents) All() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOf returns the recorded events of type T in arrival order.
func EventsOf[T any](r *RecordingEvents) []T {
	var out []T
	for _, e := range r.All() {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

var _ dk.Events = (*RecordingEvents)(nil)
