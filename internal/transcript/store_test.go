package transcript

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/agentbridge/internal/message"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	s, err := Open(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore_ByRequest(t *testing.T) {
	s := openTestStore(t, ":memory:")

	s.Publish(&message.Ready{Timestamp: 1})
	s.Publish(&message.Token{ID: "42", Token: "hel", Timestamp: 2})
	s.Publish(message.NewLogEvent(message.SourceStderr, "warming up", 3))
	s.Publish(&message.Token{ID: "7", Token: "other", Timestamp: 4})
	s.Publish(&message.Token{ID: "42", Token: "lo", Timestamp: 5})
	s.Publish(&message.Done{ID: "42", Data: json.RawMessage(`{"ok":true}`), Timestamp: 6})

	records, err := s.ByRequest(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, records, 3)

	var types []string
	for _, r := range records {
		types = append(types, r.Type)
	}

	require.Equal(t, []string{"token", "token", "done"}, types)

	ev, err := records[2].Event()
	require.NoError(t, err)

	done, ok := ev.(*message.Done)
	require.True(t, ok)
	require.JSONEq(t, `{"ok":true}`, string(done.Data))
	require.Equal(t, int64(6), done.Timestamp)
}

func TestStore_Recent(t *testing.T) {
	s := openTestStore(t, ":memory:")

	for i := range 5 {
		s.Publish(message.NewLogEvent(message.SourceStdout, string(rune('a'+i)), int64(i)))
	}

	records, err := s.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Less(t, records[0].Seq, records[1].Seq, "oldest first")

	ev, err := records[1].Event()
	require.NoError(t, err)

	log, ok := ev.(*message.LogEvent)
	require.True(t, ok)
	require.Equal(t, "e", log.Message)
	require.Equal(t, message.SourceStdout, log.Source)
	require.Equal(t, message.TopicLog, records[1].Topic)
	require.Equal(t, "stdout", records[1].Type)
}

func TestStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")

	first, err := Open(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), path)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), &message.Error{ID: "9", Error: "boom", Timestamp: 10}))
	require.NoError(t, first.Close())

	second := openTestStore(t, path)

	records, err := second.ByRequest(context.Background(), "9")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "error", records[0].Type)
	require.Equal(t, message.TopicResponse, records[0].Topic)
}

func TestStore_RecentEmpty(t *testing.T) {
	s := openTestStore(t, ":memory:")

	records, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, records)
}
