package message

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode_OmitsAbsentOptionals(t *testing.T) {
	line, err := Encode(Request{ID: "7f1c", Kind: KindClearHistory})
	require.NoError(t, err)

	require.Equal(t, `{"id":"7f1c","kind":"clear_history"}`, string(line))
}

func TestEncode_SingleLine(t *testing.T) {
	line, err := Encode(Request{
		ID:      "42",
		Kind:    KindUserMessage,
		Message: String("first line\nsecond line"),
	})
	require.NoError(t, err)

	require.NotContains(t, string(line), "\n")
	require.False(t, bytes.HasSuffix(line, []byte{'\n'}))
}

func TestEncode_DoesNotEscapeHTML(t *testing.T) {
	line, err := Encode(Request{ID: "1", Kind: KindUserMessage, Message: String("<b>a & b</b>")})
	require.NoError(t, err)

	require.Contains(t, string(line), `"message":"<b>a & b</b>"`)
}

func TestEncode_PassesUnknownKindThrough(t *testing.T) {
	line, err := Encode(Request{ID: "1", Kind: Kind("export_conversation")})
	require.NoError(t, err)

	require.Contains(t, string(line), `"kind":"export_conversation"`)
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		req        Request
		absentKeys []string
	}{
		{
			name:       "user message with images",
			req:        Request{ID: "42", Kind: KindUserMessage, Message: String("hello"), Images: String(`[{"name":"a.png","data":"iVBOR"}]`)},
			absentKeys: []string{"conversation_id"},
		},
		{
			name:       "load conversation",
			req:        Request{ID: "c0ffee", Kind: KindLoadConversation, ConversationID: String("conv-1")},
			absentKeys: []string{"message", "images"},
		},
		{
			name:       "present empty message",
			req:        Request{ID: "e", Kind: KindUserMessage, Message: String("")},
			absentKeys: []string{"images", "conversation_id"},
		},
		{
			name:       "bare interrupt",
			req:        Request{ID: "i", Kind: KindInterrupt},
			absentKeys: []string{"message", "images", "conversation_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := Encode(tt.req)
			require.NoError(t, err)

			var decoded Request
			require.NoError(t, json.Unmarshal(line, &decoded))
			require.Equal(t, tt.req, decoded)

			var raw map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(line, &raw))

			for _, key := range tt.absentKeys {
				require.NotContains(t, raw, key, "optional field must be absent, not null")
			}
		})
	}
}
