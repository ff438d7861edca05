// Package events defines the vault engine's event surface. Every mutating
// operation emits a typed record through whichever Emitter the host process
// installs; vaultd forwards them to its structured logger.
package events

// Event is a structured record of a completed state change, keyed by a stable
// type string.
type Event interface {
	EventType() string
}

// Emitter delivers events to a downstream sink (logger, indexer, test capture).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. It is the engine's default sink until
// SetEmitter wires a real one.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}
