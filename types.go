package agentbridge

import (
	"github.com/wagiedev/agentbridge/internal/config"
	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/sink"
	"github.com/wagiedev/agentbridge/internal/subprocess"
)

// Re-export types from internal packages

// ===== Options =====

// Options configures a bridge.
type Options = config.Options

// ExitInfo describes how a child process ended.
type ExitInfo = config.ExitInfo

// ===== Requests =====

// Request is an outbound message to the agent runtime.
type Request = message.Request

// Kind selects the runtime-side handler for a Request.
type Kind = message.Kind

const (
	KindUserMessage        = message.KindUserMessage
	KindClearHistory       = message.KindClearHistory
	KindInterrupt          = message.KindInterrupt
	KindListConversations  = message.KindListConversations
	KindLoadConversation   = message.KindLoadConversation
	KindNewConversation    = message.KindNewConversation
	KindDeleteConversation = message.KindDeleteConversation
)

// ===== Events =====

// Event is anything published by the bridge: every Response and *LogEvent.
type Event = message.Event

// Topic names the stream an Event belongs to.
type Topic = message.Topic

const (
	// TopicResponse carries structured responses.
	TopicResponse = message.TopicResponse
	// TopicLog carries diagnostic lines.
	TopicLog = message.TopicLog
)

// Response is a structured message from the agent runtime.
type Response = message.Response

// ResponseType is the discriminant of a Response.
type ResponseType = message.ResponseType

const (
	TypeReady      = message.TypeReady
	TypeToken      = message.TypeToken
	TypeToolUse    = message.TypeToolUse
	TypeToolResult = message.TypeToolResult
	TypeDone       = message.TypeDone
	TypeError      = message.TypeError
)

// Response variants.
type (
	Ready      = message.Ready
	Token      = message.Token
	ToolUse    = message.ToolUse
	ToolResult = message.ToolResult
	Done       = message.Done
	Error      = message.Error
)

// LogEvent is an output line that is not a Response.
type LogEvent = message.LogEvent

// Source identifies the child stream a LogEvent came from.
type Source = message.Source

const (
	SourceStdout = message.SourceStdout
	SourceStderr = message.SourceStderr
)

// ===== Sinks =====

// Sink receives every event the bridge publishes.
type Sink = sink.Sink

// SinkFunc adapts a function to a Sink.
type SinkFunc = sink.Func

// Subscription is a buffered event subscriber. Range over Events or read
// from C.
type Subscription = sink.Channel

// Queue is a lossless event subscriber. Range over Events or Pop after
// Ready.
type Queue = sink.Queue

// Subscriber is any subscription that Unsubscribe accepts.
type Subscriber = sink.Subscriber

// ===== Lifecycle =====

// State is the lifecycle state of the agent runtime.
type State = subprocess.State

const (
	StateNotStarted  = subprocess.StateNotStarted
	StateRunning     = subprocess.StateRunning
	StateExited      = subprocess.StateExited
	StateSpawnFailed = subprocess.StateSpawnFailed
)
