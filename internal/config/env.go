package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env is the bridge configuration read from the process environment.
// Every variable is optional.
type Env struct {
	RuntimeCommand           string        `env:"AGENTBRIDGE_RUNTIME_COMMAND"`
	RuntimeArgs              []string      `env:"AGENTBRIDGE_RUNTIME_ARGS" envSeparator:" "`
	RuntimeDir               string        `env:"AGENTBRIDGE_RUNTIME_DIR"`
	SkipVersionCheck         bool          `env:"AGENTBRIDGE_SKIP_VERSION_CHECK"`
	MaxBufferSize            int           `env:"AGENTBRIDGE_MAX_BUFFER_SIZE"`
	ReadChunkSize            int           `env:"AGENTBRIDGE_READ_CHUNK_SIZE"`
	ReadRetryDelay           time.Duration `env:"AGENTBRIDGE_READ_RETRY_DELAY"`
	MaxConsecutiveReadErrors int           `env:"AGENTBRIDGE_MAX_READ_ERRORS"`
	ShutdownGrace            time.Duration `env:"AGENTBRIDGE_SHUTDOWN_GRACE"`
	LogLevel                 string        `env:"AGENTBRIDGE_LOG_LEVEL" envDefault:"info"`
	ListenAddr               string        `env:"AGENTBRIDGE_LISTEN_ADDR" envDefault:"127.0.0.1:7420"`
	TranscriptPath           string        `env:"AGENTBRIDGE_TRANSCRIPT"`
}

// FromEnv parses the AGENTBRIDGE_* environment variables.
func FromEnv() (*Env, error) {
	cfg := &Env{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// Apply copies every set field of e onto o. Fields already set on o by the
// caller are overwritten.
func (e *Env) Apply(o *Options) {
	if e.RuntimeCommand != "" {
		o.RuntimeCommand = e.RuntimeCommand
		o.RuntimeArgs = e.RuntimeArgs
	} else if len(e.RuntimeArgs) > 0 {
		o.RuntimeArgs = e.RuntimeArgs
	}

	if e.RuntimeDir != "" {
		o.RuntimeDir = e.RuntimeDir
	}

	if e.SkipVersionCheck {
		o.SkipVersionCheck = true
	}

	if e.MaxBufferSize > 0 {
		o.MaxBufferSize = e.MaxBufferSize
	}

	if e.ReadChunkSize > 0 {
		o.ReadChunkSize = e.ReadChunkSize
	}

	if e.ReadRetryDelay > 0 {
		o.ReadRetryDelay = e.ReadRetryDelay
	}

	if e.MaxConsecutiveReadErrors != 0 {
		o.MaxConsecutiveReadErrors = e.MaxConsecutiveReadErrors
	}

	if e.ShutdownGrace > 0 {
		o.ShutdownGrace = e.ShutdownGrace
	}
}

// Level maps LogLevel to a slog level. Unknown names select info.
func (e *Env) Level() slog.Level {
	switch strings.ToLower(e.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
