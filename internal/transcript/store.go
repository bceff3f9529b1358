// Package transcript persists bridge events to SQLite so past conversations
// can be inspected after the runtime has exited.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/wagiedev/agentbridge/internal/message"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	topic      TEXT    NOT NULL,
	type       TEXT    NOT NULL,
	request_id TEXT    NOT NULL DEFAULT '',
	payload    TEXT    NOT NULL,
	timestamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_request_id ON events (request_id);
`

// Record is one stored event.
type Record struct {
	Seq       int64
	Topic     message.Topic
	Type      string // response type, or the source stream for log events
	RequestID string
	Payload   json.RawMessage
	Timestamp int64
}

// Event decodes the stored payload back into an event.
func (r Record) Event() (message.Event, error) {
	if r.Topic == message.TopicLog {
		var ev message.LogEvent
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode log event %d: %w", r.Seq, err)
		}

		return &ev, nil
	}

	resp, ok := message.Decode(string(r.Payload))
	if !ok {
		return nil, fmt.Errorf("decode response %d: not a response", r.Seq)
	}

	return resp, nil
}

// Store is a Sink that appends every event to a SQLite database.
type Store struct {
	log *slog.Logger
	db  *sql.DB
}

// Open opens or creates the transcript database at path. Use ":memory:"
// for a throwaway store.
func Open(ctx context.Context, log *slog.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", path, err)
	}

	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create transcript schema: %w", err)
	}

	return &Store{
		log: log.With("component", "transcript"),
		db:  db,
	}, nil
}

// Publish implements sink.Sink. Failures are logged and the event is lost.
func (s *Store) Publish(ev message.Event) {
	if err := s.Append(context.Background(), ev); err != nil {
		s.log.Error("Failed to record event", "topic", ev.Topic(), "error", err)
	}
}

// Append stores ev.
func (s *Store) Append(ctx context.Context, ev message.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var (
		typ       string
		requestID string
		ts        int64
	)

	switch ev := ev.(type) {
	case message.Response:
		typ = string(ev.Type())
		requestID = ev.RequestID()
		ts = ev.Time()
	case *message.LogEvent:
		typ = string(ev.Source)
		ts = ev.Timestamp
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (topic, type, request_id, payload, timestamp) VALUES (?, ?, ?, ?, ?)",
		string(ev.Topic()), typ, requestID, string(payload), ts,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// ByRequest returns the responses to the request with the given id, oldest
// first.
func (s *Store) ByRequest(ctx context.Context, requestID string) ([]Record, error) {
	return s.query(ctx,
		"SELECT seq, topic, type, request_id, payload, timestamp FROM events WHERE request_id = ? ORDER BY seq",
		requestID,
	)
}

// Recent returns the last limit events, oldest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx,
		`SELECT seq, topic, type, request_id, payload, timestamp FROM (
			SELECT * FROM events ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`,
		limit,
	)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		var (
			r       Record
			topic   string
			payload string
		)

		if err := rows.Scan(&r.Seq, &topic, &r.Type, &r.RequestID, &payload, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}

		r.Topic = message.Topic(topic)
		r.Payload = json.RawMessage(payload)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transcript rows: %w", err)
	}

	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
