package events

import (
	"sync"

	"hyperlendp2p/core/types"
)

// Event represents a structured state change emitted by the lending market.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers, tests).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into engines so emission is always safe.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MemoryEmitter retains emitted events in order. The RPC server uses it to
// serve the recent event feed and tests use it to assert emissions.
type MemoryEmitter struct {
	mu     sync.RWMutex
	events []types.Event
	cap    int
}

// NewMemoryEmitter constructs an in-memory emitter bounded to cap events. A
// non-positive cap keeps every event.
func NewMemoryEmitter(cap int) *MemoryEmitter {
	return &MemoryEmitter{cap: cap}
}

// Emit implements the Emitter interface.
func (m *MemoryEmitter) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *payload)
	if m.cap > 0 && len(m.events) > m.cap {
		m.events = append([]types.Event{}, m.events[len(m.events)-m.cap:]...)
	}
}

// Events returns a copy of the retained events in emission order.
func (m *MemoryEmitter) Events() []types.Event {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Event, len(m.events))
	copy(out, m.events)
	return out
}
