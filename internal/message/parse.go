package message

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// wireFields holds the members of one JSON object by exact key.
//
// Decoding into a struct would match keys case-insensitively, accepting
// {"TYPE":"ready"} as a response; a map keeps the match exact.
type wireFields map[string]json.RawMessage

// str returns the named member if it is a JSON string.
func (f wireFields) str(key string) (string, bool) {
	raw, ok := f[key]
	if !ok || bytes.Equal(raw, jsonNull) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}

	return s, true
}

// integer returns the named member if it is a JSON integer.
func (f wireFields) integer(key string) (int64, bool) {
	raw, ok := f[key]
	if !ok || bytes.Equal(raw, jsonNull) {
		return 0, false
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}

	return n, true
}

// Decode parses one line as a Response.
//
// The parse is strict: the line must be a single JSON object with a known
// "type" and every field that variant requires, each of the right JSON type.
// Anything else reports ok=false, meaning the line is free-form diagnostic
// text rather than protocol traffic. Decode never returns an error.
func Decode(line string) (Response, bool) {
	var w wireFields
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return nil, false
	}

	typ, ok := w.str("type")
	if !ok {
		return nil, false
	}

	ts, ok := w.integer("timestamp")
	if !ok {
		return nil, false
	}

	id, hasID := w.str("id")
	data, hasData := w["data"]

	switch ResponseType(typ) {
	case TypeReady:
		return &Ready{Timestamp: ts}, true

	case TypeToken:
		token, ok := w.str("token")
		if !hasID || !ok {
			return nil, false
		}

		return &Token{ID: id, Token: token, Timestamp: ts}, true

	case TypeToolUse:
		if !hasID || !hasData {
			return nil, false
		}

		return &ToolUse{ID: id, Data: data, Timestamp: ts}, true

	case TypeToolResult:
		if !hasID || !hasData {
			return nil, false
		}

		return &ToolResult{ID: id, Data: data, Timestamp: ts}, true

	case TypeDone:
		if !hasID {
			return nil, false
		}

		// An explicit null is the same as no data.
		done := &Done{ID: id, Timestamp: ts}
		if hasData && !bytes.Equal(data, jsonNull) {
			done.Data = data
		}

		return done, true

	case TypeError:
		msg, ok := w.str("error")
		if !hasID || !ok {
			return nil, false
		}

		return &Error{ID: id, Error: msg, Timestamp: ts}, true

	default:
		return nil, false
	}
}
