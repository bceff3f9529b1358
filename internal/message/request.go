package message

import (
	"bytes"
	"encoding/json"

	"github.com/wagiedev/agentbridge/internal/errors"
)

// Kind selects the runtime-side handler for a Request. The bridge passes
// it through without validation.
type Kind string

const (
	KindUserMessage        Kind = "user_message"
	KindClearHistory       Kind = "clear_history"
	KindInterrupt          Kind = "interrupt"
	KindListConversations  Kind = "list_conversations"
	KindLoadConversation   Kind = "load_conversation"
	KindNewConversation    Kind = "new_conversation"
	KindDeleteConversation Kind = "delete_conversation"
)

// Request is an outbound message to the agent runtime.
//
// ID is supplied by the caller and correlates the request with the
// responses it produces. Optional fields are omitted from the wire when nil;
// a non-nil empty string is sent as "".
type Request struct {
	ID             string  `json:"id"`
	Kind           Kind    `json:"kind"`
	Message        *string `json:"message,omitempty"`
	Images         *string `json:"images,omitempty"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// Encode serializes req to its canonical single-line form, without the
// trailing line terminator.
func Encode(req Request) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(req); err != nil {
		return nil, &errors.EncodeError{RequestID: req.ID, Err: err}
	}

	// Encoder.Encode terminates the value with a newline; framing is the
	// channel's job.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// String returns a pointer to s, for filling optional Request fields.
func String(s string) *string {
	return &s
}
