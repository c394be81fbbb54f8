package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by Peek when nothing is pending
	ErrQueueEmpty = errors.New("queue is empty")
)

// Utterance is one piece of text waiting to be spoken.
type Utterance struct {
	ID         uuid.UUID
	Text       string
	EnqueuedAt time.Time
}

// UtteranceQueue is an unbounded FIFO of utterances with a blocking Dequeue.
// Enqueue never blocks. After Close, Dequeue keeps returning what was
// already queued and reports ErrQueueClosed once the queue is drained.
type UtteranceQueue struct {
	items []Utterance

	// Synchronization
	mu       sync.Mutex
	notEmpty *sync.Cond

	// State
	closed    bool
	stats     Stats
	totalWait time.Duration
}

// Stats tracks queue performance metrics
type Stats struct {
	TotalEnqueued   int64
	TotalDequeued   int64
	TotalCleared    int64
	CurrentSize     int
	PeakSize        int
	LastEnqueue     time.Time
	LastDequeue     time.Time
	AverageWaitTime time.Duration
}

// NewUtteranceQueue creates an empty queue.
func NewUtteranceQueue() *UtteranceQueue {
	q := &UtteranceQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends text to the tail of the queue.
func (q *UtteranceQueue) Enqueue(text string) (Utterance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Utterance{}, ErrQueueClosed
	}

	u := Utterance{
		ID:         uuid.New(),
		Text:       text,
		EnqueuedAt: time.Now(),
	}
	q.items = append(q.items, u)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = u.EnqueuedAt
	q.stats.CurrentSize = len(q.items)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}

	// Signal that queue is not empty
	q.notEmpty.Signal()

	return u, nil
}

// Dequeue removes and returns the head of the queue, blocking until an item
// is available, the queue is closed and drained, or ctx is done.
func (q *UtteranceQueue) Dequeue(ctx context.Context) (Utterance, error) {
	// Wake the waiter below when ctx ends
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.notEmpty.Wait()
	}

	if len(q.items) == 0 {
		if q.closed {
			return Utterance{}, ErrQueueClosed
		}
		return Utterance{}, ctx.Err()
	}

	u := q.items[0]
	q.items[0] = Utterance{}
	q.items = q.items[1:]

	now := time.Now()
	q.totalWait += now.Sub(u.EnqueuedAt)
	q.stats.TotalDequeued++
	q.stats.LastDequeue = now
	q.stats.CurrentSize = len(q.items)

	return u, nil
}

// Peek returns the head of the queue without removing it.
func (q *UtteranceQueue) Peek() (Utterance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return Utterance{}, ErrQueueClosed
		}
		return Utterance{}, ErrQueueEmpty
	}
	return q.items[0], nil
}

// Size returns the number of pending utterances.
func (q *UtteranceQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear drops every pending utterance and returns how many were dropped.
func (q *UtteranceQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.stats.TotalCleared += int64(n)
	q.stats.CurrentSize = 0
	return n
}

// GetStats returns current queue statistics.
func (q *UtteranceQueue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	if stats.TotalDequeued > 0 {
		stats.AverageWaitTime = q.totalWait / time.Duration(stats.TotalDequeued)
	}
	return stats
}

// Closed reports whether Close has been called.
func (q *UtteranceQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Close stops accepting new utterances. Pending ones stay available to
// Dequeue.
func (q *UtteranceQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	// Wake up any waiting goroutines
	q.notEmpty.Broadcast()

	return nil
}
