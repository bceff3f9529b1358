//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentbridge"
)

// TestQuery_Answer tests a one-shot question against the real runtime.
func TestQuery_Answer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	var (
		text strings.Builder
		done bool
	)

	for resp, err := range agentbridge.Query(ctx, "What is 6 times 7? Reply with the number only.", runtimeOptions(t)...) {
		if err != nil {
			skipIfRuntimeMissing(t, err)
			t.Fatalf("Query failed: %v", err)
		}

		switch r := resp.(type) {
		case *agentbridge.Token:
			text.WriteString(r.Token)
		case *agentbridge.Done:
			done = true
		case *agentbridge.Error:
			t.Fatalf("agent error: %s", r.Error)
		}
	}

	require.True(t, done, "should receive a done response")
	require.True(t, contains42(text.String()), "answer should contain 42, got %q", text.String())
}

// TestQuery_StderrAndExit tests that runtime diagnostics reach the callbacks.
func TestQuery_StderrAndExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	var exits []agentbridge.ExitInfo

	for _, err := range agentbridge.Query(ctx, "Say 'hello'", runtimeOptions(t,
		agentbridge.WithStderr(func(line string) { t.Logf("stderr: %s", line) }),
		agentbridge.WithOnExit(func(info agentbridge.ExitInfo) { exits = append(exits, info) }),
	)...) {
		if err != nil {
			skipIfRuntimeMissing(t, err)
			t.Fatalf("Query failed: %v", err)
		}
	}

	require.Len(t, exits, 1, "the runtime should be reaped once")
}
