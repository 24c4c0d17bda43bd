package events

import "stakeledger/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Convertible events can be flattened into the attribute form served to
// indexers and the journal.
type Convertible interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Fanout delivers every event to each emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Buffer holds events until they are flushed. It is not safe for concurrent
// use; the staking engine owns one per in-flight operation.
type Buffer struct {
	pending []Event
}

func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }

// Truncate drops every event buffered after the first n.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n >= len(b.pending) {
		return
	}
	for i := n; i < len(b.pending); i++ {
		b.pending[i] = nil
	}
	b.pending = b.pending[:n]
}

// Flush delivers the buffered events to dst and empties the buffer.
func (b *Buffer) Flush(dst Emitter) {
	pending := b.pending
	b.pending = nil
	if dst == nil {
		return
	}
	for _, evt := range pending {
		dst.Emit(evt)
	}
}

// Events returns a copy of the buffered events.
func (b *Buffer) Events() []Event {
	return append([]Event(nil), b.pending...)
}
