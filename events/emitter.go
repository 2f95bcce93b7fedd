// Package events publishes lifecycle notifications for external subscribers
// (webhook dispatchers, UI realtime updates). Emission is fire and forget:
// the core owes no delivery guarantee.
package events

import "time"

type Event struct {
	Name       string         `json:"name"`
	OccurredAt time.Time      `json:"occurredAt"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type Emitter interface {
	Emit(name string, payload map[string]any)
	Close() error
}

// NoopEmitter is used when no broker is configured.
type NoopEmitter struct{}

var _ Emitter = NoopEmitter{}

func (NoopEmitter) Emit(name string, payload map[string]any) {}

func (NoopEmitter) Close() error { return nil }
