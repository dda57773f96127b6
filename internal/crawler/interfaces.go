// Package crawler defines the core types and interfaces shared across the
// mirror pipeline: the work queue crossing from the catalog producer to the
// metadata workers, and the small collaborators both stages depend on.
package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Dequeue once the queue has been closed and
// every buffered item has been drained. Workers treat it as end-of-stream,
// not a failure.
var ErrQueueClosed = errors.New("queue closed")

// Queue is the handoff point between the two pipeline stages. Enqueue blocks
// while the queue is at capacity, Dequeue blocks while it is empty.
type Queue interface {
	Enqueue(ctx context.Context, id string) error
	Dequeue(ctx context.Context) (string, error)
	Depth() int
	Close()
}

// Publisher pushes change events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
