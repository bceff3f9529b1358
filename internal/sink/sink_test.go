package sink

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentbridge/internal/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func logEvent(msg string) *message.LogEvent {
	return message.NewLogEvent(message.SourceStdout, msg, 1)
}

func TestFunc_Publish(t *testing.T) {
	var got []message.Event

	s := Func(func(ev message.Event) { got = append(got, ev) })
	s.Publish(logEvent("a"))

	require.Len(t, got, 1)
}

func TestFanout_PublishesToAll(t *testing.T) {
	a := NewRing(4)
	b := NewRing(4)

	f := Fanout{a, nil, b}
	f.Publish(logEvent("x"))

	require.Len(t, a.Snapshot(), 1)
	require.Len(t, b.Snapshot(), 1)
}

func TestChannel_DropsWhenFull(t *testing.T) {
	c := NewChannel(discardLogger(), 2)

	c.Publish(logEvent("1"))
	c.Publish(logEvent("2"))
	c.Publish(logEvent("3"))

	require.Equal(t, uint64(1), c.Dropped())
	require.Len(t, c.C(), 2)
}

func TestChannel_EventsStopsOnClose(t *testing.T) {
	c := NewChannel(discardLogger(), 8)

	c.Publish(logEvent("1"))
	c.Publish(logEvent("2"))
	c.Close()
	c.Close()

	// Publishing after close is ignored rather than panicking.
	c.Publish(logEvent("3"))

	var got []string
	for ev := range c.Events(context.Background()) {
		got = append(got, ev.(*message.LogEvent).Message)
	}

	require.Equal(t, []string{"1", "2"}, got)
}

func TestChannel_EventsStopsOnContext(t *testing.T) {
	c := NewChannel(discardLogger(), 8)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	count := 0
	for range c.Events(ctx) {
		count++
	}

	require.Zero(t, count)
}

func TestChannel_ConcurrentPublish(t *testing.T) {
	c := NewChannel(discardLogger(), 1000)

	var wg sync.WaitGroup

	for range 2 {
		wg.Go(func() {
			for range 400 {
				c.Publish(logEvent("x"))
			}
		})
	}

	wg.Wait()

	require.Len(t, c.C(), 800)
	require.Zero(t, c.Dropped())
}

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing(3)

	for _, m := range []string{"a", "b", "c", "d", "e"} {
		r.Publish(logEvent(m))
	}

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "c", snap[0].(*message.LogEvent).Message)
	require.Equal(t, "e", snap[2].(*message.LogEvent).Message)
	require.Equal(t, uint64(5), r.Last())
}

func TestRing_Since(t *testing.T) {
	r := NewRing(10)

	for _, m := range []string{"a", "b", "c"} {
		r.Publish(logEvent(m))
	}

	entries := r.Since(1)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(2), entries[0].Seq)
	require.Empty(t, r.Since(r.Last()))
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(discardLogger())

	first := b.Subscribe(4)
	second := b.Subscribe(4)

	b.Publish(logEvent("a"))
	b.Unsubscribe(first)
	b.Publish(logEvent("b"))

	var got []string
	for ev := range first.Events(context.Background()) {
		got = append(got, ev.(*message.LogEvent).Message)
	}

	require.Equal(t, []string{"a"}, got)
	require.Len(t, second.C(), 2)

	b.Close()

	_, ok := <-second.C()
	require.True(t, ok, "buffered events survive close")
	_, ok = <-second.C()
	require.True(t, ok)
	_, ok = <-second.C()
	require.False(t, ok)
}
