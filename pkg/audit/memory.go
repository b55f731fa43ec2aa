package audit

import (
	"context"
	"sync"
)

// MemoryPublisher collects events in memory for tests and local development.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snapshot := make([]Event, len(p.events))
	copy(snapshot, p.events)
	return snapshot
}

// ByAction filters the snapshot to events with the given action.
func (p *MemoryPublisher) ByAction(action Action) []Event {
	var matched []Event
	for _, event := range p.Events() {
		if event.Action == action {
			matched = append(matched, event)
		}
	}
	return matched
}
