package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/testutil"
	"github.com/wagiedev/agentbridge/internal/transcript"
)

func TestHelperProcess(t *testing.T) {
	testutil.RunHelperProcess()
}

// useFakeRuntime points the environment configuration at the fake runtime.
func useFakeRuntime(t *testing.T) {
	t.Helper()

	for k, v := range testutil.Env(testutil.ModeEcho) {
		t.Setenv(k, v)
	}

	t.Setenv("AGENTBRIDGE_RUNTIME_COMMAND", os.Args[0])
	t.Setenv("AGENTBRIDGE_RUNTIME_ARGS", strings.Join(testutil.Args(), " "))
	t.Setenv("AGENTBRIDGE_RUNTIME_DIR", ".")
	t.Setenv("AGENTBRIDGE_SKIP_VERSION_CHECK", "true")
	t.Setenv("AGENTBRIDGE_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestRun_Ask(t *testing.T) {
	useFakeRuntime(t)

	path := filepath.Join(t.TempDir(), "transcript.db")

	out, err := execute(t, "run", "--transcript", path, "hello", "there")
	require.NoError(t, err)
	require.Contains(t, out, "hello there")
	require.Contains(t, out, `[tool] {"name":"echo"}`)

	out, err = execute(t, "history", "--transcript", path, "--limit", "100")
	require.NoError(t, err)
	require.Contains(t, out, "SEQ")
	require.Contains(t, out, "token")
	require.Contains(t, out, "ready")
}

func TestRun_RuntimeNotFound(t *testing.T) {
	t.Setenv("AGENTBRIDGE_RUNTIME_COMMAND", "/nonexistent/agent")
	t.Setenv("AGENTBRIDGE_SKIP_VERSION_CHECK", "true")

	out, err := execute(t, "run", "hi")
	require.Error(t, err)
	require.Contains(t, out, "not found")
}

func TestHistory_RequiresTranscript(t *testing.T) {
	t.Setenv("AGENTBRIDGE_TRANSCRIPT", "")

	_, err := execute(t, "history")
	require.ErrorContains(t, err, "no transcript configured")
}

func TestHistory_ByRequestJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")

	store, err := transcript.Open(context.Background(), testLogger(), path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), &message.Token{ID: "r1", Token: "a", Timestamp: 1}))
	require.NoError(t, store.Append(context.Background(), &message.Token{ID: "r2", Token: "b", Timestamp: 2}))
	require.NoError(t, store.Append(context.Background(), &message.Done{ID: "r1", Timestamp: 3}))
	require.NoError(t, store.Close())

	out, err := execute(t, "history", "--transcript", path, "--request", "r1", "--json")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.JSONEq(t, `{"type":"token","id":"r1","token":"a","timestamp":1}`, lines[0])
	require.JSONEq(t, `{"type":"done","id":"r1","timestamp":3}`, lines[1])
}

func TestServe_Healthz(t *testing.T) {
	useFakeRuntime(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	a := &app{}
	require.NoError(t, a.load(newRootCommand()))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- a.serve(ctx, listener, nil, true)
	}()

	url := "http://" + listener.Addr().String() + "/healthz"

	var health struct {
		State     string `json:"state"`
		ProcessID string `json:"process_id"`
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		return json.NewDecoder(resp.Body).Decode(&health) == nil
	}, 10*time.Second, 20*time.Millisecond)

	require.Equal(t, "running", health.State)
	require.NotEmpty(t, health.ProcessID)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
