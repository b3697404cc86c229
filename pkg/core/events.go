// pkg/core/events.go
package core

import "time"

// EventKind identifies what happened to a descriptor during a tick.
type EventKind string

const (
	EventActivated   EventKind = "activated"
	EventDeactivated EventKind = "deactivated"
	EventDestroyed   EventKind = "destroyed"
	EventTick        EventKind = "tick"
)

// Event is published by the streaming manager for every state change.
// Values are copies; holding one never aliases manager state.
type Event struct {
	Kind         EventKind `json:"kind"`
	Tick         uint64    `json:"tick"`
	Time         time.Time `json:"time"`
	DescriptorID int       `json:"descriptorId"`
	Position     Vec2      `json:"position"`
	Diameter     float64   `json:"diameter"`
	// Distance from the observer to the descriptor anchor, when known.
	Distance float64 `json:"distance"`
	// Value is the salvage value, set on EventDestroyed.
	Value float64 `json:"value,omitempty"`
	// Silhouette is the world-space outline, set on EventActivated.
	Silhouette []Vec2 `json:"silhouette,omitempty"`
	// Stats is only set on EventTick.
	Stats *TickStats `json:"stats,omitempty"`
}

// TickStats summarises one Advance call.
type TickStats struct {
	Tick        uint64        `json:"tick"`
	Time        time.Time     `json:"time"`
	Active      int           `json:"active"`
	Activated   int           `json:"activated"`
	Deactivated int           `json:"deactivated"`
	Destroyed   int           `json:"destroyed"`
	Duration    time.Duration `json:"duration"`
	Observer    *Vec2         `json:"observer,omitempty"`
}
