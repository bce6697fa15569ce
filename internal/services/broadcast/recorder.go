package broadcast

import (
	"sync"

	"github.com/mcoot/poisonedglass/internal/model"
)

// Recorder is a Listener that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEvent stores the event
func (r *Recorder) OnEvent(event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of each recorded event in order
func (r *Recorder) Types() []model.EventType {
	events := r.Events()
	out := make([]model.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

// OfType returns recorded events with the given type
func (r *Recorder) OfType(t model.EventType) []model.Event {
	var out []model.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
