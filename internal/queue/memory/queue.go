// Package memory provides the in-process Target queue feeding the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan crawler.QueueItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan crawler.QueueItem, capacity),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends.
// Enqueueing after Close returns crawler.ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	q.closeMu.Lock()
	closed := q.closed
	q.closeMu.Unlock()
	if closed {
		return crawler.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation. Items still
// buffered when the queue closes are delivered before ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	select {
	case <-ctx.Done():
		return crawler.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return crawler.QueueItem{}, crawler.ErrQueueClosed
		}
		return item, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops intake. It is safe to call more than once, but must not run
// concurrently with Enqueue.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
