package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithDefaults_Nil(t *testing.T) {
	t.Parallel()

	var o *Options

	got := o.WithDefaults()

	require.Equal(t, DefaultRuntimeCommand, got.RuntimeCommand)
	require.Equal(t, []string{"tsx", "src/index.ts"}, got.RuntimeArgs)
	require.Equal(t, DefaultRuntimeDir, got.RuntimeDir)
	require.Equal(t, DefaultMaxBufferSize, got.MaxBufferSize)
	require.Equal(t, DefaultReadChunkSize, got.ReadChunkSize)
	require.Equal(t, DefaultReadRetryDelay, got.ReadRetryDelay)
	require.Zero(t, got.MaxConsecutiveReadErrors, "read faults are retried forever by default")
	require.Equal(t, DefaultShutdownGrace, got.ShutdownGrace)
	require.NotNil(t, got.Sink)
}

func TestWithDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	o := &Options{
		RuntimeCommand:           "/opt/agent/bin/agent",
		RuntimeDir:               "/srv/agent",
		MaxBufferSize:            1024,
		ReadRetryDelay:           time.Second,
		MaxConsecutiveReadErrors: -1,
	}

	got := o.WithDefaults()

	require.Equal(t, "/opt/agent/bin/agent", got.RuntimeCommand)
	require.Nil(t, got.RuntimeArgs, "custom command must not inherit the npx arguments")
	require.Equal(t, "/srv/agent", got.RuntimeDir)
	require.Equal(t, 1024, got.MaxBufferSize)
	require.Equal(t, time.Second, got.ReadRetryDelay)
	require.Equal(t, -1, got.MaxConsecutiveReadErrors)

	// The receiver is left untouched.
	require.Zero(t, o.ReadChunkSize)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AGENTBRIDGE_RUNTIME_COMMAND", "node")
	t.Setenv("AGENTBRIDGE_RUNTIME_ARGS", "dist/index.js --quiet")
	t.Setenv("AGENTBRIDGE_MAX_BUFFER_SIZE", "4096")
	t.Setenv("AGENTBRIDGE_READ_RETRY_DELAY", "250ms")
	t.Setenv("AGENTBRIDGE_LOG_LEVEL", "DEBUG")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Equal(t, "node", cfg.RuntimeCommand)
	require.Equal(t, []string{"dist/index.js", "--quiet"}, cfg.RuntimeArgs)
	require.Equal(t, slog.LevelDebug, cfg.Level())
	require.Equal(t, "127.0.0.1:7420", cfg.ListenAddr)

	o := &Options{RuntimeDir: "/keep"}
	cfg.Apply(o)

	require.Equal(t, "node", o.RuntimeCommand)
	require.Equal(t, []string{"dist/index.js", "--quiet"}, o.RuntimeArgs)
	require.Equal(t, "/keep", o.RuntimeDir)
	require.Equal(t, 4096, o.MaxBufferSize)
	require.Equal(t, 250*time.Millisecond, o.ReadRetryDelay)
}

func TestFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("AGENTBRIDGE_MAX_BUFFER_SIZE", "lots")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestEnvLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "verbose", want: slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, (&Env{LogLevel: tc.in}).Level())
		})
	}
}
