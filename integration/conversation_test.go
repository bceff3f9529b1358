//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentbridge"
)

// awaitDone waits for the done response to id.
func awaitDone(ctx context.Context, t *testing.T, sub *agentbridge.Queue, id string) *agentbridge.Done {
	t.Helper()

	for ev := range sub.Events(ctx) {
		switch r := ev.(type) {
		case *agentbridge.Done:
			if r.ID == id {
				return r
			}
		case *agentbridge.Error:
			if r.ID == id {
				t.Fatalf("request %s failed: %s", id, r.Error)
			}
		}
	}

	t.Fatalf("no done response to %s: %v", id, ctx.Err())

	return nil
}

// TestConversation_Memory tests that a conversation keeps context between
// messages and that clearing history forgets it.
func TestConversation_Memory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	err := agentbridge.WithBridge(ctx, func(b agentbridge.Bridge) error {
		sub := b.SubscribeQueue(nil)
		defer b.Unsubscribe(sub)

		id, err := b.NewConversation(ctx)
		require.NoError(t, err)
		awaitDone(ctx, t, sub, id)

		for _, err := range b.Ask(ctx, "Remember the number 42.", nil) {
			require.NoError(t, err)
		}

		answer := ""

		for resp, err := range b.Ask(ctx, "What number did I ask you to remember?", nil) {
			require.NoError(t, err)

			if tok, ok := resp.(*agentbridge.Token); ok {
				answer += tok.Token
			}
		}

		require.True(t, contains42(answer), "should remember 42, got %q", answer)

		id, err = b.ListConversations(ctx)
		require.NoError(t, err)

		done := awaitDone(ctx, t, sub, id)
		require.True(t, json.Valid(done.Data), "conversation list should be JSON")

		id, err = b.ClearHistory(ctx)
		require.NoError(t, err)
		awaitDone(ctx, t, sub, id)

		return nil
	}, runtimeOptions(t)...)
	if err != nil {
		skipIfRuntimeMissing(t, err)
		t.Fatalf("WithBridge failed: %v", err)
	}
}
