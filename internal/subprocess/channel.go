package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/wagiedev/agentbridge/internal/errors"
	"github.com/wagiedev/agentbridge/internal/message"
)

// RequestChannel writes requests to the child's standard input, one line
// per request.
//
// Send is safe for concurrent use. Each request's bytes are written and
// flushed under one lock, so lines from concurrent callers never interleave.
type RequestChannel struct {
	log    *slog.Logger
	mu      sync.Mutex // Protects the fields below
	w       io.Writer
	bw      *bufio.Writer
	severed bool // the reading end of the pipe is gone
	closed  bool // Close was called
}

// NewRequestChannel creates a channel writing to w. If w is an io.Closer,
// Close closes it.
func NewRequestChannel(log *slog.Logger, w io.Writer) *RequestChannel {
	return &RequestChannel{
		log: log.With("component", "request_channel"),
		w:   w,
		bw:  bufio.NewWriter(w),
	}
}

// Send encodes req and writes it as one newline-terminated line.
//
// The context is checked once before writing; a write in progress is not
// interrupted. If the child's input has been severed, Send returns
// errors.ErrChannelClosed, now and on every later call. Any other I/O
// failure is returned as a *errors.WriteError and the channel stays usable.
func (c *RequestChannel) Send(ctx context.Context, req message.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.severed {
		return errors.ErrChannelClosed
	}

	line, err := message.Encode(req)
	if err != nil {
		c.log.Error("Failed to encode request", "id", req.ID, "error", err)

		return err
	}

	c.log.Debug("Sending request", "id", req.ID, "kind", req.Kind, "bytes", len(line))

	if _, err := c.bw.Write(line); err != nil {
		return c.fail("write", err)
	}

	if err := c.bw.WriteByte('\n'); err != nil {
		return c.fail("write", err)
	}

	if err := c.bw.Flush(); err != nil {
		return c.fail("flush", err)
	}

	return nil
}

// fail classifies a write failure. Must be called with c.mu held.
func (c *RequestChannel) fail(op string, err error) error {
	if isSevered(err) {
		c.severed = true
		c.log.Warn("Agent input closed, request dropped", "error", err)

		return fmt.Errorf("%w: %w", errors.ErrChannelClosed, err)
	}

	c.log.Error("Failed to write request", "op", op, "error", err)

	// bufio.Writer keeps its first error forever; start over with an
	// empty buffer so the caller can retry.
	c.bw.Reset(c.w)

	return &errors.WriteError{Op: op, Err: err}
}

// Closed reports whether the channel no longer accepts requests.
func (c *RequestChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed || c.severed
}

// Close marks the channel closed and closes the underlying writer if it is
// an io.Closer, also after the pipe was severed. The child sees
// end-of-input. Safe to call multiple times.
func (c *RequestChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if closer, ok := c.w.(io.Closer); ok {
		c.log.Debug("Closing agent input")

		if err := closer.Close(); err != nil && !isSevered(err) {
			return fmt.Errorf("close agent input: %w", err)
		}
	}

	return nil
}

// isSevered reports whether err means the reading end of the pipe is gone.
func isSevered(err error) bool {
	return stderrors.Is(err, syscall.EPIPE) ||
		stderrors.Is(err, io.ErrClosedPipe) ||
		stderrors.Is(err, os.ErrClosed)
}
