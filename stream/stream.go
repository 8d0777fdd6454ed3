// Package stream provides abstractions for delivering real-time node
// execution updates to observers. Stream events are append-only and
// delivered in publication order per execution id; the Sink interface lets
// the same event shape be carried over an in-memory channel, Redis, or
// Pulse without node code depending on the transport.
package stream

import (
	"context"
	"time"
)

// EventKind enumerates the closed set of stream event kinds.
type EventKind string

const (
	EventNodeStarted   EventKind = "node_started"
	EventNodeProgress  EventKind = "node_progress"
	EventNodeOutput    EventKind = "node_output"
	EventLog           EventKind = "log"
	EventNodeCompleted EventKind = "node_completed"
	EventNodeFailed    EventKind = "node_failed"
)

// Event is one append-only, immutable stream update.
type Event struct {
	Kind        EventKind
	NodeID      string
	ExecutionID string
	Agent       string
	Task        string
	Payload     map[string]any
	Timestamp   time.Time
}

// Sink delivers streaming updates to observers over a transport. Publish must
// be safe to call concurrently; the engine may publish from multiple
// goroutines when nodes run in parallel.
type Sink interface {
	// Publish delivers event to the sink's transport. Implementations must
	// preserve publication order per ExecutionID.
	Publish(ctx context.Context, event Event) error

	// Subscribe returns a channel of events for one execution id, plus an
	// unsubscribe function that must be called to release resources.
	Subscribe(ctx context.Context, executionID string) (<-chan Event, func())

	// Close releases resources owned by the sink. Idempotent.
	Close(ctx context.Context) error
}
