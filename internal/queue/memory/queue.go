// Package memory provides the in-process bounded job queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Queue is a bounded in-memory FIFO queue with context-aware dequeue.
// Submissions beyond capacity are rejected, not blocked: the HTTP layer
// must answer immediately.
type Queue struct {
	ch      chan scrape.QueueItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan scrape.QueueItem, capacity),
	}
}

// TryEnqueue pushes a job without blocking. A full backlog returns
// ErrQueueFull so the caller can reject the submission.
func (q *Queue) TryEnqueue(item scrape.QueueItem) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return scrape.ErrQueueFull
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (scrape.QueueItem, error) {
	select {
	case <-ctx.Done():
		return scrape.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return scrape.QueueItem{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// Depth returns the number of queued items.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
