package events

import "pettrace/core/types"

// Event represents a structured state change emitted by the node.
type Event interface {
	EventType() string
}

// Payload is implemented by events that render to the canonical
// types.Event shape stored in receipts and the archive.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, archive).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events in emission order. The state processor uses one per
// transaction and only publishes its contents once the transaction commits.
type Buffer struct {
	events []*types.Event
}

// Emit implements the Emitter interface. Events without a canonical payload
// are dropped.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	p, ok := evt.(Payload)
	if !ok {
		return
	}
	if rendered := p.Event(); rendered != nil {
		b.events = append(b.events, rendered.Clone())
	}
}

// Events returns a copy of the buffered events.
func (b *Buffer) Events() []types.Event {
	if b == nil {
		return nil
	}
	out := make([]types.Event, 0, len(b.events))
	for _, evt := range b.events {
		out = append(out, *evt.Clone())
	}
	return out
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	if b != nil {
		b.events = nil
	}
}
