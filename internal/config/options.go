package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/agentbridge/internal/frame"
	"github.com/wagiedev/agentbridge/internal/pump"
	"github.com/wagiedev/agentbridge/internal/sink"
)

const (
	// DefaultRuntimeCommand launches the agent runtime through npx.
	DefaultRuntimeCommand = "npx"

	// DefaultRuntimeDir is where the runtime sources live, relative to the
	// bridge's working directory.
	DefaultRuntimeDir = "../../agent-runtime"

	// DefaultMaxBufferSize is the ceiling for unterminated output per stream.
	DefaultMaxBufferSize = frame.DefaultMaxBufferSize

	// DefaultReadChunkSize is the size of each read from the child's streams.
	DefaultReadChunkSize = pump.DefaultChunkSize

	// DefaultReadRetryDelay is the pause before retrying a failed read.
	DefaultReadRetryDelay = pump.DefaultRetryDelay

	// DefaultShutdownGrace is how long a child gets to exit after its input
	// is closed before it is killed.
	DefaultShutdownGrace = 2 * time.Second
)

// DefaultRuntimeArgs are the arguments passed to DefaultRuntimeCommand.
func DefaultRuntimeArgs() []string {
	return []string{"tsx", "src/index.ts"}
}

// ExitInfo describes a child process that has been reaped.
type ExitInfo struct {
	// ProcessID is the bridge-assigned id of the process.
	ProcessID string

	// PID is the operating system process id.
	PID int

	// ExitCode is the exit status, or -1 if the process was killed by a signal.
	ExitCode int

	// Stderr holds the last lines the child wrote to stderr.
	Stderr string

	// Err is non-nil when the process did not exit cleanly.
	Err error
}

// Options configures the bridge.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// RuntimeCommand is the executable that starts the agent runtime.
	// A bare name is searched in PATH and common locations; a path is used as is.
	RuntimeCommand string

	// RuntimeArgs are passed to RuntimeCommand.
	RuntimeArgs []string

	// RuntimeDir is the working directory of the child process.
	RuntimeDir string

	// Env provides additional environment variables for the child process.
	Env map[string]string

	// SkipVersionCheck skips probing the runtime executable's version.
	SkipVersionCheck bool

	// MaxBufferSize caps unterminated buffered output per stream.
	MaxBufferSize int

	// ReadChunkSize is the maximum number of bytes read from a stream at once.
	ReadChunkSize int

	// ReadRetryDelay is the pause between a failed read and the next attempt.
	ReadRetryDelay time.Duration

	// MaxConsecutiveReadErrors ends a stream after this many failed reads in
	// a row, and the child is then killed. Zero or a negative value retries
	// forever, so only end-of-stream ends a stream.
	MaxConsecutiveReadErrors int

	// ShutdownGrace bounds how long a graceful shutdown waits after closing
	// the child's input before killing it.
	ShutdownGrace time.Duration

	// Stderr is a callback function for handling stderr output.
	Stderr func(string)

	// OnExit is called once each child process has been reaped.
	OnExit func(ExitInfo)

	// Sink receives every decoded event.
	// If nil, events are discarded.
	Sink sink.Sink
}

// WithDefaults returns a copy of o with unset fields filled in.
func (o *Options) WithDefaults() *Options {
	out := &Options{}
	if o != nil {
		*out = *o
	}

	if out.RuntimeCommand == "" {
		out.RuntimeCommand = DefaultRuntimeCommand

		if out.RuntimeArgs == nil {
			out.RuntimeArgs = DefaultRuntimeArgs()
		}
	}

	if out.RuntimeDir == "" {
		out.RuntimeDir = DefaultRuntimeDir
	}

	if out.MaxBufferSize <= 0 {
		out.MaxBufferSize = DefaultMaxBufferSize
	}

	if out.ReadChunkSize <= 0 {
		out.ReadChunkSize = DefaultReadChunkSize
	}

	if out.ReadRetryDelay <= 0 {
		out.ReadRetryDelay = DefaultReadRetryDelay
	}

	if out.ShutdownGrace <= 0 {
		out.ShutdownGrace = DefaultShutdownGrace
	}

	if out.Sink == nil {
		out.Sink = sink.Discard
	}

	return out
}
