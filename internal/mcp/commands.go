package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/sink"
)

// defaultPollLimit caps the events returned by one poll_events call.
const defaultPollLimit = 100

// Commander is the command surface the tools drive.
type Commander interface {
	Spawn(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, id, text string, images *string) (string, error)
	ClearHistory(ctx context.Context) (string, error)
	Interrupt(ctx context.Context) (string, error)
	ListConversations(ctx context.Context) (string, error)
	LoadConversation(ctx context.Context, conversationID string) (string, error)
	NewConversation(ctx context.Context) (string, error)
	DeleteConversation(ctx context.Context, conversationID string) (string, error)
}

type sendMessageArgs struct {
	ID      string  `json:"id"`
	Message string  `json:"message"`
	Images  *string `json:"images"`
}

type conversationArgs struct {
	ConversationID string `json:"conversation_id"`
}

type pollArgs struct {
	Since     uint64 `json:"since"`
	RequestID string `json:"request_id"`
	Limit     int    `json:"limit"`
}

// PolledEvent is one event returned by poll_events.
type PolledEvent struct {
	Seq   uint64        `json:"seq"`
	Topic message.Topic `json:"topic"`
	Event message.Event `json:"event"`
}

// PollResult is the result of poll_events. Pass Next as since to continue.
type PollResult struct {
	Events []PolledEvent `json:"events"`
	Next   uint64        `json:"next"`
}

// RegisterCommands adds one tool per bridge command to s, plus poll_events
// reading from ring. ring must be a sink of the same bridge.
func RegisterCommands(s *Server, commander Commander, ring *sink.Ring) {
	empty := ObjectSchema(nil)
	conversation := ObjectSchema(map[string]string{"conversation_id": "string"})

	s.AddTool(NewTool("spawn_agent", "Start the agent runtime. Returns the process id.", empty),
		func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return idResult(commander.Spawn(ctx))
		})

	s.AddTool(NewTool("send_message",
		"Send a user message to the agent. Returns the request id its responses carry.",
		ObjectSchema(map[string]string{"message": "string", "id": "string", "images": "string"}, "id", "images")),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args sendMessageArgs
			if err := ParseArguments(req, &args); err != nil {
				return nil, err
			}

			return idResult(commander.SendMessage(ctx, args.ID, args.Message, args.Images))
		})

	for name, tc := range map[string]struct {
		description string
		run         func(context.Context) (string, error)
	}{
		"clear_history":      {"Clear the current conversation.", commander.ClearHistory},
		"interrupt":          {"Stop the request in progress.", commander.Interrupt},
		"list_conversations": {"List stored conversations. The list is the data of the done response.", commander.ListConversations},
		"new_conversation":   {"Start a fresh conversation.", commander.NewConversation},
	} {
		s.AddTool(NewTool(name, tc.description, empty),
			func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return idResult(tc.run(ctx))
			})
	}

	for name, tc := range map[string]struct {
		description string
		run         func(context.Context, string) (string, error)
	}{
		"load_conversation":   {"Switch to a stored conversation.", commander.LoadConversation},
		"delete_conversation": {"Delete a stored conversation.", commander.DeleteConversation},
	} {
		s.AddTool(NewTool(name, tc.description, conversation),
			func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				var args conversationArgs
				if err := ParseArguments(req, &args); err != nil {
					return nil, err
				}

				return idResult(tc.run(ctx, args.ConversationID))
			})
	}

	s.AddTool(NewTool("poll_events",
		"Return events published after sequence number since, optionally only responses to request_id.",
		ObjectSchema(map[string]string{"since": "uint64", "request_id": "string", "limit": "int"}, "since", "request_id", "limit")),
		func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args pollArgs
			if err := ParseArguments(req, &args); err != nil {
				return nil, err
			}

			return JSONResult(poll(ring, args)), nil
		})
}

func idResult(id string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return ErrorResult(err.Error()), nil
	}

	return JSONResult(map[string]string{"id": id}), nil
}

func poll(ring *sink.Ring, args pollArgs) PollResult {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultPollLimit
	}

	result := PollResult{Events: []PolledEvent{}, Next: args.Since}

	for _, e := range ring.Since(args.Since) {
		if len(result.Events) == limit {
			break
		}

		result.Next = e.Seq

		if args.RequestID != "" {
			resp, ok := e.Event.(message.Response)
			if !ok || resp.RequestID() != args.RequestID {
				continue
			}
		}

		result.Events = append(result.Events, PolledEvent{Seq: e.Seq, Topic: e.Event.Topic(), Event: e.Event})
	}

	return result
}
