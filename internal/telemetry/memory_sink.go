package telemetry

import (
	"context"
	"sync"
)

// DefaultMemorySinkRetention bounds how many events a memory sink keeps.
const DefaultMemorySinkRetention = 512

// MemorySink is a bounded deterministic in-memory sink used by tests. When
// retention is exceeded the oldest events are dropped, like the caption log.
type MemorySink struct {
	mu        sync.Mutex
	retention int
	events    []Event
}

// NewMemorySink returns an empty sink with the default retention.
func NewMemorySink() *MemorySink {
	return &MemorySink{retention: DefaultMemorySinkRetention}
}

// Export appends an event, evicting the oldest past retention.
func (s *MemorySink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if overflow := len(s.events) - s.retention; overflow > 0 {
		s.events = append(s.events[:0], s.events[overflow:]...)
	}
	return nil
}

// Events returns a copy of the retained events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Logs returns retained log events with the given name; an empty name
// matches every log event.
func (s *MemorySink) Logs(name string) []Event {
	return s.filter(func(event Event) bool {
		return event.Kind == EventKindLog && (name == "" || (event.Log != nil && event.Log.Name == name))
	})
}

// ForComponent returns retained events correlated to one component.
func (s *MemorySink) ForComponent(component string) []Event {
	return s.filter(func(event Event) bool {
		return event.Correlation.Component == component
	})
}

func (s *MemorySink) filter(keep func(Event) bool) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, event := range s.events {
		if keep(event) {
			out = append(out, event)
		}
	}
	return out
}
