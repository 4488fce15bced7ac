package events

import (
	"fmt"
	"testing"

	"hyperlendp2p/core/types"
)

type stubEvent struct {
	kind string
	n    int
}

func (e stubEvent) EventType() string { return e.kind }

func (e stubEvent) Event() *types.Event {
	return &types.Event{
		Type:       e.kind,
		Attributes: map[string]string{"n": fmt.Sprintf("%d", e.n)},
	}
}

func TestMemoryEmitterRetainsInOrder(t *testing.T) {
	emitter := NewMemoryEmitter(0)
	for i := 0; i < 3; i++ {
		emitter.Emit(stubEvent{kind: "test.event", n: i})
	}
	evts := emitter.Events()
	if len(evts) != 3 {
		t.Fatalf("len = %d, want 3", len(evts))
	}
	for i, evt := range evts {
		if evt.Attributes["n"] != fmt.Sprintf("%d", i) {
			t.Fatalf("event %d out of order: %+v", i, evt)
		}
	}
}

func TestMemoryEmitterBoundedCap(t *testing.T) {
	emitter := NewMemoryEmitter(2)
	for i := 0; i < 5; i++ {
		emitter.Emit(stubEvent{kind: "test.event", n: i})
	}
	evts := emitter.Events()
	if len(evts) != 2 {
		t.Fatalf("len = %d, want 2", len(evts))
	}
	if evts[0].Attributes["n"] != "3" || evts[1].Attributes["n"] != "4" {
		t.Fatalf("cap must keep the newest events: %+v", evts)
	}
}

func TestMemoryEmitterEventsReturnsCopy(t *testing.T) {
	emitter := NewMemoryEmitter(0)
	emitter.Emit(stubEvent{kind: "test.event", n: 1})
	evts := emitter.Events()
	evts[0].Type = "mutated"
	if fresh := emitter.Events(); fresh[0].Type != "test.event" {
		t.Fatal("mutating a returned slice must not touch retained events")
	}
}

func TestNoopEmitterIsSafe(t *testing.T) {
	NoopEmitter{}.Emit(nil)
	NoopEmitter{}.Emit(stubEvent{kind: "test.event"})
}
