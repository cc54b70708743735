package pipeline

import (
	"context"
	"sync/atomic"
)

// Queue capacity tiers.
const (
	// DefaultQueueCapacity bounds the segment handoff for normal hosts.
	DefaultQueueCapacity = 50

	// HighQueueCapacity is used under the high-capacity execution profile.
	HighQueueCapacity = 100
)

// segmentQueue is the bounded handoff between producer and consumer. A nil
// element is the terminal sentinel; the producer enqueues it exactly once,
// after setting the done flag. The flag and the sentinel are deliberately
// redundant: the sentinel enqueue and the flag store are not atomic with
// each other, so the consumer accepts either signal.
type segmentQueue struct {
	segments chan []byte
	done     atomic.Bool
}

func newSegmentQueue(capacity int) *segmentQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &segmentQueue{
		segments: make(chan []byte, capacity),
	}
}

// put blocks until the segment is enqueued, throttling the producer to the
// consumer's sink speed. It returns false when the context is cancelled.
func (q *segmentQueue) put(ctx context.Context, segment []byte) bool {
	select {
	case q.segments <- segment:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish marks the producer as done and enqueues the sentinel. The flag is
// stored first so a consumer that misses the sentinel still terminates via
// the done-and-empty check.
func (q *segmentQueue) finish(ctx context.Context) {
	q.done.Store(true)

	select {
	case q.segments <- nil:
	case <-ctx.Done():
	}
}

// finished reports whether the producer is done and nothing is left to
// drain. Only valid as a completion check; a false result just means "keep
// polling".
func (q *segmentQueue) finished() bool {
	return q.done.Load() && len(q.segments) == 0
}
