package sink

import (
	"context"
	"iter"
	"sync"

	"github.com/wagiedev/agentbridge/internal/message"
)

// Queue is an unbounded, lossless subscriber.
//
// Publish never blocks and never drops, so a queue must only accept events
// its consumer will drain; the accept filter runs before anything is stored.
// Events published before Close stay readable with Pop.
type Queue struct {
	accept func(message.Event) bool
	ready  chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	items  []message.Event
	closed bool
}

// NewQueue creates a Queue storing the events accept reports true for. A
// nil accept stores every event.
func NewQueue(accept func(message.Event) bool) *Queue {
	return &Queue{
		accept: accept,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish implements Sink.
func (q *Queue) Publish(ev message.Event) {
	if q.accept != nil && !q.accept(ev) {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return
	}

	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest stored event.
func (q *Queue) Pop() (message.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	return ev, true
}

// Len returns the number of stored events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Ready receives a value after events were stored. Pop until it reports
// false before waiting on Ready again.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Done is closed by Close.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Events yields stored events in order until ctx is done, or until the
// queue is closed and drained.
func (q *Queue) Events(ctx context.Context) iter.Seq[message.Event] {
	return func(yield func(message.Event) bool) {
		for {
			for ev, ok := q.Pop(); ok; ev, ok = q.Pop() {
				if !yield(ev) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-q.ready:
			case <-q.done:
				for ev, ok := q.Pop(); ok; ev, ok = q.Pop() {
					if !yield(ev) {
						return
					}
				}

				return
			}
		}
	}
}

// Close stops accepting events. Safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
}
