package capture

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/camview/camview/pkg/frame"
)

// DropPolicy decides which frame is lost when the consumer lags behind.
type DropPolicy int

const (
	// DropOldest replaces the oldest queued frame, the consumer always
	// gets the freshest image.
	DropOldest DropPolicy = iota
	// DropNewest discards the incoming frame.
	DropNewest
)

func ParseDropPolicy(s string) (DropPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "oldest":
		return DropOldest, nil
	case "newest":
		return DropNewest, nil
	}
	return DropOldest, fmt.Errorf("unknown drop policy %q", s)
}

// Observer receives capture events, i.e. for metrics.
type Observer interface {
	Captured()
	Dropped()
}

type noopObserver struct{}

func (noopObserver) Captured() {}
func (noopObserver) Dropped()  {}

type Stats struct {
	Enqueued uint64
	Dropped  uint64
	// Stale frames had a timestamp older than the previous one.
	Stale uint64
}

// queue is the bounded hand-off between the capture goroutine and the
// consumer. It never blocks the producer.
type queue struct {
	mu     sync.Mutex
	ch     chan frame.VideoFrame
	policy DropPolicy
	closed bool
	last   int64
	seen   bool
	obs    Observer

	enqueued, dropped, stale atomic.Uint64
}

func newQueue(size int, policy DropPolicy, obs Observer) *queue {
	if size < 1 {
		size = 1
	}
	return &queue{ch: make(chan frame.VideoFrame, size), policy: policy, obs: obs}
}

func (q *queue) push(f frame.VideoFrame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.seen && f.Timestamp < q.last {
		q.stale.Add(1)
		q.drop()
		return
	}
	q.last, q.seen = f.Timestamp, true

	select {
	case q.ch <- f:
		q.enqueue()
		return
	default:
	}
	if q.policy == DropNewest {
		q.drop()
		return
	}
	select {
	case <-q.ch:
		q.drop()
	default:
	}
	select {
	case q.ch <- f:
		q.enqueue()
	default:
		q.drop()
	}
}

func (q *queue) enqueue() {
	q.enqueued.Add(1)
	q.obs.Captured()
}

func (q *queue) drop() {
	q.dropped.Add(1)
	q.obs.Dropped()
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *queue) stats() Stats {
	return Stats{Enqueued: q.enqueued.Load(), Dropped: q.dropped.Load(), Stale: q.stale.Load()}
}
