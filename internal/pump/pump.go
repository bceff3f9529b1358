// Package pump drains one output stream of the agent runtime.
//
// A Pump reads raw chunks, reassembles lines with a frame.Assembler,
// classifies each line and publishes exactly one event per line to a sink.
// Two pumps run per child process, one for stdout and one for stderr.
package pump

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/wagiedev/agentbridge/internal/errors"
	"github.com/wagiedev/agentbridge/internal/frame"
	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/sink"
)

const (
	// DefaultChunkSize is the read buffer size used when Config.ChunkSize is unset.
	DefaultChunkSize = 64 * 1024 // 64KB

	// DefaultRetryDelay is the pause after a failed read before retrying.
	DefaultRetryDelay = 100 * time.Millisecond
)

// Config tunes a Pump. The zero value is usable.
type Config struct {
	// ChunkSize is the maximum number of bytes requested per read.
	ChunkSize int

	// MaxBufferSize caps unterminated buffered bytes; see frame.New.
	MaxBufferSize int

	// RetryDelay is the pause between a failed read and the next attempt.
	RetryDelay time.Duration

	// MaxConsecutiveErrors ends the pump after this many failed reads in a
	// row. Zero retries forever.
	MaxConsecutiveErrors int

	// Tap, if set, receives every assembled line before it is published.
	Tap func(line string)

	// Now stamps synthetic log events. Defaults to time.Now.
	Now func() time.Time
}

// Outcome describes how a pump ended.
type Outcome struct {
	Source     message.Source
	Lines      int // lines assembled
	Events     int // events published; equals Lines
	Dropped    int // lines dropped as invalid UTF-8
	Overflows  int // buffer discards
	ReadErrors int // failed reads, retried or not

	// Err is nil when the stream reached end-of-stream, the context error if
	// the pump was cancelled, or a *errors.ReadError if it gave up.
	Err error
}

// EndOfStream reports whether the pump ended because the child closed
// the stream.
func (o Outcome) EndOfStream() bool {
	return o.Err == nil
}

// Pump drives one stream until end-of-stream.
type Pump struct {
	log    *slog.Logger
	source message.Source
	r      io.Reader
	sink   sink.Sink
	cfg    Config
	asm    *frame.Assembler
}

// New creates a pump for the given stream.
//
// On SourceStdout, lines that decode as a message.Response are published as
// is and everything else becomes a LogEvent. On SourceStderr every line
// becomes a LogEvent; stderr is never interpreted as protocol traffic.
func New(log *slog.Logger, source message.Source, r io.Reader, s sink.Sink, cfg Config) *Pump {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if s == nil {
		s = sink.Discard
	}

	return &Pump{
		log:    log.With("component", "pump", "source", string(source)),
		source: source,
		r:      r,
		sink:   s,
		cfg:    cfg,
		asm:    frame.New(cfg.MaxBufferSize),
	}
}

// Run reads until end-of-stream, cancellation, or too many consecutive
// read errors, and reports how it ended.
//
// Cancellation is observed between reads only; a read blocked on a live
// pipe returns once the child exits or the pipe is closed.
func (p *Pump) Run(ctx context.Context) Outcome {
	out := Outcome{Source: p.source}
	buf := make([]byte, p.cfg.ChunkSize)
	consecutive := 0

	p.log.Debug("Pump started", "chunk_size", p.cfg.ChunkSize, "max_buffer", p.asm.Limit())

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(out, err)
		}

		n, err := p.r.Read(buf)
		if n > 0 {
			consecutive = 0
			p.consume(&out, buf[:n])
		}

		if err == nil {
			continue
		}

		if isEndOfStream(err) {
			p.log.Info("Stream closed by child")

			return p.finish(out, nil)
		}

		out.ReadErrors++
		consecutive++

		if p.cfg.MaxConsecutiveErrors > 0 && consecutive >= p.cfg.MaxConsecutiveErrors {
			p.log.Error("Giving up on stream after repeated read errors", "attempts", consecutive, "error", err)

			return p.finish(out, &errors.ReadError{
				Source:   string(p.source),
				Attempts: consecutive,
				Err:      err,
			})
		}

		p.log.Warn("Read error, retrying", "error", err, "attempt", consecutive)

		select {
		case <-ctx.Done():
			return p.finish(out, ctx.Err())
		case <-time.After(p.cfg.RetryDelay):
		}
	}
}

// consume feeds one chunk and publishes the lines it completes.
func (p *Pump) consume(out *Outcome, chunk []byte) {
	droppedBefore := p.asm.Stats().Dropped

	lines, err := p.asm.Feed(chunk)

	if dropped := p.asm.Stats().Dropped - droppedBefore; dropped > 0 {
		p.log.Debug("Dropped lines with invalid text encoding", "count", dropped)
	}

	for _, line := range lines {
		out.Lines++
		p.publish(line)
		out.Events++
	}

	if overflow, ok := stderrors.AsType[*errors.BufferOverflowError](err); ok {
		out.Overflows++
		p.log.Warn("Discarded unterminated output exceeding buffer limit",
			"discarded_bytes", overflow.Discarded,
			"limit", overflow.Limit,
		)
	}
}

// publish classifies one line and hands exactly one event to the sink.
func (p *Pump) publish(line string) {
	p.log.Debug("Received line", "line_len", len(line))

	if p.cfg.Tap != nil {
		p.cfg.Tap(line)
	}

	if p.source == message.SourceStdout {
		if resp, ok := message.Decode(line); ok {
			p.sink.Publish(resp)

			return
		}
	}

	p.sink.Publish(message.NewLogEvent(p.source, line, p.cfg.Now().UnixMilli()))
}

func (p *Pump) finish(out Outcome, err error) Outcome {
	if tail := p.asm.Len(); tail > 0 {
		p.log.Debug("Discarding unterminated tail", "bytes", tail)
		p.asm.Reset()
	}

	out.Dropped = p.asm.Stats().Dropped
	out.Err = err

	p.log.Debug("Pump stopped",
		"lines", out.Lines,
		"dropped", out.Dropped,
		"overflows", out.Overflows,
		"read_errors", out.ReadErrors,
	)

	return out
}

// isEndOfStream reports whether err means the stream will never produce
// more data.
func isEndOfStream(err error) bool {
	return stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, io.ErrClosedPipe) ||
		stderrors.Is(err, os.ErrClosed)
}
