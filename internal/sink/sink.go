// Package sink defines where decoded events go.
//
// A Sink receives every event the stream pumps decode. The two pumps publish
// concurrently, so every implementation here is safe for concurrent use.
package sink

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/agentbridge/internal/message"
)

// Sink is the destination for decoded events.
//
// Publish must be safe to call from multiple goroutines and should not block
// for long: a slow sink stalls the pump that calls it.
type Sink interface {
	Publish(ev message.Event)
}

// Func adapts an ordinary function to the Sink interface.
type Func func(ev message.Event)

// Publish implements Sink.
func (f Func) Publish(ev message.Event) {
	f(ev)
}

// Discard drops every event.
var Discard Sink = Func(func(message.Event) {})

// Fanout publishes each event to every sink in order.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ev message.Event) {
	for _, s := range f {
		if s != nil {
			s.Publish(ev)
		}
	}
}

// Channel buffers events for a consumer goroutine.
//
// When the buffer is full, Publish drops the event and counts it rather than
// stalling the pump.
type Channel struct {
	log     *slog.Logger
	ch      chan message.Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewChannel creates a Channel sink with the given buffer size.
func NewChannel(log *slog.Logger, size int) *Channel {
	if size <= 0 {
		size = 1
	}

	return &Channel{
		log: log.With("component", "channel_sink"),
		ch:  make(chan message.Event, size),
	}
}

// Publish implements Sink.
func (c *Channel) Publish(ev message.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.ch <- ev:
	default:
		n := c.dropped.Add(1)
		c.log.Warn("Event buffer full, dropping event", "topic", ev.Topic(), "dropped_total", n)
	}
}

// C returns the receive side of the buffer.
func (c *Channel) C() <-chan message.Event {
	return c.ch
}

// Events returns an iterator over buffered events that ends when the
// context is cancelled or the sink is closed.
func (c *Channel) Events(ctx context.Context) iter.Seq[message.Event] {
	return func(yield func(message.Event) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-c.ch:
				if !ok || !yield(ev) {
					return
				}
			}
		}
	}
}

// Dropped returns how many events were dropped because the buffer was full.
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// Close closes the buffer. Later publishes are ignored. Safe to call
// multiple times.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Subscriber is a Sink registered with a Broadcaster.
type Subscriber interface {
	Sink
	Close()
}

// Broadcaster publishes each event to every current subscriber.
//
// Channel subscribers lose events when they fall behind; Queue subscribers
// keep every event they accept.
type Broadcaster struct {
	log    *slog.Logger
	mu     sync.RWMutex
	subs   map[Subscriber]struct{}
	closed bool
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		log:  log,
		subs: make(map[Subscriber]struct{}),
	}
}

// Subscribe registers a new lossy subscriber buffering up to size events.
// After Close, the returned subscriber is already closed.
func (b *Broadcaster) Subscribe(size int) *Channel {
	c := NewChannel(b.log, size)
	b.add(c)

	return c
}

// SubscribeQueue registers a lossless subscriber keeping the events accept
// reports true for. A nil accept keeps every event. After Close, the
// returned subscriber is already closed.
func (b *Broadcaster) SubscribeQueue(accept func(message.Event) bool) *Queue {
	q := NewQueue(accept)
	b.add(q)

	return q
}

func (b *Broadcaster) add(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.Close()

		return
	}

	b.subs[s] = struct{}{}
}

// Unsubscribe removes s and closes it.
func (b *Broadcaster) Unsubscribe(s Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()

	s.Close()
}

// Publish implements Sink.
func (b *Broadcaster) Publish(ev message.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		s.Publish(ev)
	}
}

// Close unsubscribes and closes every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[Subscriber]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.Close()
	}
}
