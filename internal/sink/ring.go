package sink

import (
	"sync"

	"github.com/wagiedev/agentbridge/internal/message"
)

// Ring keeps the most recent events in memory.
//
// Each stored event gets a sequence number so a poller can ask for
// everything after the last sequence it saw.
type Ring struct {
	mu     sync.Mutex
	events []Entry
	size   int
	next   uint64
}

// Entry is a stored event and its sequence number.
type Entry struct {
	Seq   uint64
	Event message.Event
}

// NewRing creates a Ring that retains at most size events.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}

	return &Ring{size: size, events: make([]Entry, 0, size)}
}

// Publish implements Sink.
func (r *Ring) Publish(ev message.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++

	if len(r.events) == r.size {
		copy(r.events, r.events[1:])
		r.events = r.events[:len(r.events)-1]
	}

	r.events = append(r.events, Entry{Seq: r.next, Event: ev})
}

// Since returns retained events with a sequence number greater than seq,
// oldest first.
func (r *Ring) Since(seq uint64) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry

	for _, e := range r.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}

	return out
}

// Snapshot returns every retained event, oldest first.
func (r *Ring) Snapshot() []message.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]message.Event, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}

	return out
}

// Last returns the sequence number of the newest event, or 0 if none.
func (r *Ring) Last() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.next
}
