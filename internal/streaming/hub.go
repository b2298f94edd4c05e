package streaming

import (
	"context"
	"time"
)

// Event types published for the vault file.
const (
	EventVaultChanged = "vault.changed"
	EventVaultRemoved = "vault.removed"
)

// Event is a change notification for the on-disk vault. It never carries
// secret material, only what happened and when.
type Event struct {
	Type string    `json:"type"`
	File string    `json:"file"`
	At   time.Time `json:"at"`
}

// EventFilter specifies which events a subscriber wants to receive.
// An empty filter receives everything.
type EventFilter struct {
	Types []string `json:"types,omitempty"`
}

// EventHub provides pub/sub for vault change events.
type EventHub interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan Event, func(), error)
}
