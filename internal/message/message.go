package message

import "encoding/json"

// Topic names the event stream a decoded event belongs to.
type Topic string

const (
	// TopicResponse carries structured responses from the agent runtime.
	TopicResponse Topic = "agent_response"
	// TopicLog carries diagnostic lines that are not protocol traffic.
	TopicLog Topic = "agent_log"
)

// Event is anything published to an event sink: every Response variant
// and *LogEvent.
type Event interface {
	Topic() Topic
}

// ResponseType is the discriminant of a Response.
type ResponseType string

const (
	// TypeReady is sent once when the runtime has finished initializing.
	TypeReady ResponseType = "ready"
	// TypeToken is one streamed output fragment.
	TypeToken ResponseType = "token"
	// TypeToolUse reports that the runtime invoked a tool.
	TypeToolUse ResponseType = "tool_use"
	// TypeToolResult reports that a tool finished.
	TypeToolResult ResponseType = "tool_result"
	// TypeDone reports that a request fully completed.
	TypeDone ResponseType = "done"
	// TypeError reports that a request failed.
	TypeError ResponseType = "error"
)

// Response is a structured message from the agent runtime.
// Use a type switch to determine the concrete variant.
type Response interface {
	Event

	// Type returns the variant discriminant.
	Type() ResponseType

	// RequestID returns the id of the request this response belongs to,
	// or "" for responses not tied to a request (Ready).
	RequestID() string

	// Time returns the runtime's timestamp in milliseconds since epoch.
	Time() int64

	response()
}

// Compile-time verification that all variants implement Response.
var (
	_ Response = (*Ready)(nil)
	_ Response = (*Token)(nil)
	_ Response = (*ToolUse)(nil)
	_ Response = (*ToolResult)(nil)
	_ Response = (*Done)(nil)
	_ Response = (*Error)(nil)
	_ Event    = (*LogEvent)(nil)
)

// Ready signals that the runtime finished initialization.
type Ready struct {
	Timestamp int64 `json:"timestamp"`
}

// Token is one streamed output fragment for request ID.
type Token struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

// ToolUse reports a tool invocation made while serving request ID.
type ToolUse struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ToolResult reports the result of a tool invocation.
type ToolResult struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Done reports that request ID completed. Data is nil when the runtime
// sent none.
type Done struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Error reports that request ID failed. Error is human readable.
type Error struct {
	ID        string `json:"id"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

func (*Ready) Topic() Topic      { return TopicResponse }
func (*Token) Topic() Topic      { return TopicResponse }
func (*ToolUse) Topic() Topic    { return TopicResponse }
func (*ToolResult) Topic() Topic { return TopicResponse }
func (*Done) Topic() Topic       { return TopicResponse }
func (*Error) Topic() Topic      { return TopicResponse }

func (*Ready) Type() ResponseType      { return TypeReady }
func (*Token) Type() ResponseType      { return TypeToken }
func (*ToolUse) Type() ResponseType    { return TypeToolUse }
func (*ToolResult) Type() ResponseType { return TypeToolResult }
func (*Done) Type() ResponseType       { return TypeDone }
func (*Error) Type() ResponseType      { return TypeError }

func (*Ready) RequestID() string        { return "" }
func (r *Token) RequestID() string      { return r.ID }
func (r *ToolUse) RequestID() string    { return r.ID }
func (r *ToolResult) RequestID() string { return r.ID }
func (r *Done) RequestID() string       { return r.ID }
func (r *Error) RequestID() string      { return r.ID }

func (r *Ready) Time() int64      { return r.Timestamp }
func (r *Token) Time() int64      { return r.Timestamp }
func (r *ToolUse) Time() int64    { return r.Timestamp }
func (r *ToolResult) Time() int64 { return r.Timestamp }
func (r *Done) Time() int64       { return r.Timestamp }
func (r *Error) Time() int64      { return r.Timestamp }

func (*Ready) response()      {}
func (*Token) response()      {}
func (*ToolUse) response()    {}
func (*ToolResult) response() {}
func (*Done) response()       {}
func (*Error) response()      {}

// MarshalJSON implements json.Marshaler, emitting the tagged wire form.
func (r *Ready) MarshalJSON() ([]byte, error) {
	type wire Ready

	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		*wire
	}{TypeReady, (*wire)(r)})
}

// MarshalJSON implements json.Marshaler, emitting the tagged wire form.
func (r *Token) MarshalJSON() ([]byte, error) {
	type wire Token

	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		*wire
	}{TypeToken, (*wire)(r)})
}

// MarshalJSON implements json.Marshaler, emitting the tagged wire form.
func (r *ToolUse) MarshalJSON() ([]byte, error) {
	type wire ToolUse

	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		*wire
	}{TypeToolUse, (*wire)(r)})
}

// MarshalJSON implements json.Marshaler, emitting the tagged wire form.
func (r *ToolResult) MarshalJSON() ([]byte, error) {
	type wire ToolResult

	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		*wire
	}{TypeToolResult, (*wire)(r)})
}

// MarshalJSON implements json.Marshaler, emitting the tagged wire form.
func (r *Done) MarshalJSON() ([]byte, error) {
	type wire Done

	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		*wire
	}{TypeDone, (*wire)(r)})
}

// MarshalJSON implements json.Marshaler, emitting the tagged wire form.
func (r *Error) MarshalJSON() ([]byte, error) {
	type wire Error

	return json.Marshal(struct {
		Type ResponseType `json:"type"`
		*wire
	}{TypeError, (*wire)(r)})
}

// Source identifies which child output stream a log line came from.
type Source string

const (
	// SourceStdout is the child's standard output.
	SourceStdout Source = "stdout"
	// SourceStderr is the child's standard error.
	SourceStderr Source = "stderr"
)

// LogEvent is a synthetic event for an output line that is not a Response.
// Every stderr line becomes a LogEvent regardless of its content.
type LogEvent struct {
	Source    Source `json:"source"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Topic implements Event.
func (*LogEvent) Topic() Topic { return TopicLog }

// NewLogEvent creates a LogEvent stamped with the given time in
// milliseconds since epoch.
func NewLogEvent(source Source, line string, timestampMs int64) *LogEvent {
	return &LogEvent{
		Source:    source,
		Message:   line,
		Timestamp: timestampMs,
	}
}
