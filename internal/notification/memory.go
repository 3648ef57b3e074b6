package notification

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1024

// MemoryJournal keeps the most recent events in process memory.
type MemoryJournal struct {
	mu       sync.RWMutex
	capacity int
	events   []Event
}

// NewMemoryJournal builds a journal retaining at most capacity events.
func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryJournal{capacity: capacity}
}

func (j *MemoryJournal) Send(_ context.Context, event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	if over := len(j.events) - j.capacity; over > 0 {
		j.events = append([]Event(nil), j.events[over:]...)
	}
	return nil
}

func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	start := 0
	if limit > 0 && len(j.events) > limit {
		start = len(j.events) - limit
	}
	out := make([]Event, len(j.events)-start)
	copy(out, j.events[start:])
	return out, nil
}
