// Package memory provides the bounded in-memory work queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkgfeed/catalog-mirror/internal/crawler"
)

// Queue is a bounded multi-producer/multi-consumer queue of package
// identifiers. The capacity bound is the pipeline's backpressure mechanism:
// Enqueue blocks while the queue is full, throttling discovery to the drain
// rate of the metadata workers. After Close, readers drain the remaining
// items and then observe crawler.ErrQueueClosed.
type Queue struct {
	ch      chan string
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan string, capacity),
	}
}

// Enqueue pushes a package identifier or returns if the context ends first.
func (q *Queue) Enqueue(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- id:
		return nil
	}
}

// Dequeue pops the next package identifier, respecting context cancellation.
// Once the queue is closed and drained it returns crawler.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case id, ok := <-q.ch:
		if !ok {
			return "", crawler.ErrQueueClosed
		}
		return id, nil
	}
}

// Depth reports the number of buffered identifiers.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close signals that no more writes will arrive. Safe to call twice.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
