package subprocess

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentbridge/internal/errors"
	"github.com/wagiedev/agentbridge/internal/message"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyWriter fails the first failures writes, then records everything.
type flakyWriter struct {
	failures int
	err      error
	buf      bytes.Buffer
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.failures > 0 {
		w.failures--

		return 0, w.err
	}

	return w.buf.Write(p)
}

func TestRequestChannel_WritesOneLinePerRequest(t *testing.T) {
	var buf bytes.Buffer

	c := NewRequestChannel(discardLogger(), &buf)

	require.NoError(t, c.Send(context.Background(), message.Request{ID: "1", Kind: message.KindClearHistory}))
	require.NoError(t, c.Send(context.Background(), message.Request{
		ID:      "2",
		Kind:    message.KindUserMessage,
		Message: message.String("multi\nline"),
	}))

	require.Equal(t,
		`{"id":"1","kind":"clear_history"}`+"\n"+`{"id":"2","kind":"user_message","message":"multi\nline"}`+"\n",
		buf.String(),
	)
}

func TestRequestChannel_ConcurrentSendsDoNotInterleave(t *testing.T) {
	pr, pw := io.Pipe()
	c := NewRequestChannel(discardLogger(), pw)

	const (
		senders    = 8
		perSender  = 50
		totalLines = senders * perSender
	)

	lines := make(chan string, totalLines)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var wg sync.WaitGroup

	for s := range senders {
		wg.Go(func() {
			for i := range perSender {
				// Vary sizes across the bufio buffer boundary.
				body := strings.Repeat(string(rune('a'+s)), (i*97)%9000)

				err := c.Send(context.Background(), message.Request{
					ID:      fmt.Sprintf("%d-%d", s, i),
					Kind:    message.KindUserMessage,
					Message: message.String(body),
				})
				assert.NoError(t, err)
			}
		})
	}

	wg.Wait()
	require.NoError(t, pw.Close())

	seen := make(map[string]bool, totalLines)

	for line := range lines {
		var req message.Request
		require.NoError(t, json.Unmarshal([]byte(line), &req), "line must be a whole request")

		var s, i int
		_, err := fmt.Sscanf(req.ID, "%d-%d", &s, &i)
		require.NoError(t, err)
		require.Equal(t, strings.Repeat(string(rune('a'+s)), (i*97)%9000), *req.Message)

		seen[req.ID] = true
	}

	require.Len(t, seen, totalLines)
}

func TestRequestChannel_SeveredOSPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	t.Cleanup(func() { _ = w.Close() })

	c := NewRequestChannel(discardLogger(), w)
	req := message.Request{ID: "1", Kind: message.KindUserMessage, Message: message.String("hi")}

	err = c.Send(context.Background(), req)
	require.ErrorIs(t, err, errors.ErrChannelClosed)
	require.ErrorIs(t, err, syscall.EPIPE)
	require.True(t, c.Closed())

	// Later sends fail the same way without touching the pipe.
	err = c.Send(context.Background(), req)
	require.ErrorIs(t, err, errors.ErrChannelClosed)
	require.NotErrorIs(t, err, syscall.EPIPE)
}

func TestRequestChannel_SeveredIOPipe(t *testing.T) {
	pr, pw := io.Pipe()
	require.NoError(t, pr.Close())

	c := NewRequestChannel(discardLogger(), pw)
	req := message.Request{ID: "1", Kind: message.KindInterrupt}

	for range 2 {
		err := c.Send(context.Background(), req)
		require.ErrorIs(t, err, errors.ErrChannelClosed)
	}
}

func TestRequestChannel_WriteErrorIsRetryable(t *testing.T) {
	w := &flakyWriter{failures: 1, err: stderrors.New("device busy")}
	c := NewRequestChannel(discardLogger(), w)

	err := c.Send(context.Background(), message.Request{ID: "1", Kind: message.KindClearHistory})

	writeErr, ok := stderrors.AsType[*errors.WriteError](err)
	require.True(t, ok)
	require.Equal(t, "flush", writeErr.Op)
	require.False(t, c.Closed())

	require.NoError(t, c.Send(context.Background(), message.Request{ID: "2", Kind: message.KindClearHistory}))
	require.Equal(t, `{"id":"2","kind":"clear_history"}`+"\n", w.buf.String())
}

func TestRequestChannel_CancelledContext(t *testing.T) {
	var buf bytes.Buffer

	c := NewRequestChannel(discardLogger(), &buf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Send(ctx, message.Request{ID: "1", Kind: message.KindInterrupt})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, buf.Len())
}

func TestRequestChannel_Close(t *testing.T) {
	pr, pw := io.Pipe()
	c := NewRequestChannel(discardLogger(), pw)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := c.Send(context.Background(), message.Request{ID: "1", Kind: message.KindInterrupt})
	require.ErrorIs(t, err, errors.ErrChannelClosed)

	// The reader sees end-of-input.
	_, err = pr.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

// severedCloser reports a broken pipe on every write and records Close.
type severedCloser struct {
	closes int
}

func (w *severedCloser) Write([]byte) (int, error) {
	return 0, syscall.EPIPE
}

func (w *severedCloser) Close() error {
	w.closes++

	return nil
}

func TestRequestChannel_CloseAfterSeveredPipe(t *testing.T) {
	w := &severedCloser{}
	c := NewRequestChannel(discardLogger(), w)

	err := c.Send(context.Background(), message.Request{ID: "1", Kind: message.KindInterrupt})
	require.ErrorIs(t, err, errors.ErrChannelClosed)
	require.True(t, c.Closed())

	// The writer is still released once.
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.Equal(t, 1, w.closes)
}
