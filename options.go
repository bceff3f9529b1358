package agentbridge

import (
	"log/slog"
	"maps"
	"time"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithOptions starts from a copy of base, for example one loaded from the
// environment. Options applied after it override its fields.
func WithOptions(base *Options) Option {
	return func(o *Options) {
		if base == nil {
			return
		}

		*o = *base
		o.Env = maps.Clone(base.Env)
	}
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// ===== Runtime =====

// WithRuntimeCommand sets the executable that starts the agent runtime and
// its arguments. A bare name is searched in PATH.
func WithRuntimeCommand(command string, args ...string) Option {
	return func(o *Options) {
		o.RuntimeCommand = command
		o.RuntimeArgs = args
	}
}

// WithRuntimeDir sets the working directory of the agent runtime.
func WithRuntimeDir(dir string) Option {
	return func(o *Options) {
		o.RuntimeDir = dir
	}
}

// WithEnv adds environment variables for the agent runtime.
// Repeated calls merge, later values win.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithSkipVersionCheck disables probing the runtime executable's version.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *Options) {
		o.SkipVersionCheck = skip
	}
}

// ===== Streams =====

// WithMaxBufferSize caps unterminated buffered output per stream.
// Lines longer than this are discarded.
func WithMaxBufferSize(size int) Option {
	return func(o *Options) {
		o.MaxBufferSize = size
	}
}

// WithReadChunkSize sets the maximum number of bytes read at once.
func WithReadChunkSize(size int) Option {
	return func(o *Options) {
		o.ReadChunkSize = size
	}
}

// WithReadRetry sets the pause after a failed read and how many failures
// in a row end the stream. When a stream is abandoned the runtime is killed.
// Zero or a negative maxErrors retries forever, which is the default.
func WithReadRetry(delay time.Duration, maxErrors int) Option {
	return func(o *Options) {
		o.ReadRetryDelay = delay
		o.MaxConsecutiveReadErrors = maxErrors
	}
}

// ===== Lifecycle =====

// WithShutdownGrace bounds how long Stop and Close wait for the runtime to
// exit on its own before killing it.
func WithShutdownGrace(grace time.Duration) Option {
	return func(o *Options) {
		o.ShutdownGrace = grace
	}
}

// WithStderr sets a callback invoked for every line the runtime writes to
// stderr.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithOnExit sets a callback invoked once each runtime process is reaped.
func WithOnExit(handler func(ExitInfo)) Option {
	return func(o *Options) {
		o.OnExit = handler
	}
}

// WithSink sets the sink that receives every event.
func WithSink(s Sink) Option {
	return func(o *Options) {
		o.Sink = s
	}
}
