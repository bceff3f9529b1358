package agentbridge

import (
	"context"
	"iter"
)

// Bridge supervises one agent runtime at a time and carries requests to it.
//
// A bridge starts idle. Spawn launches the runtime; after it exits, Spawn
// may be called again. Close stops the runtime for good.
//
// Example usage:
//
//	b := agentbridge.NewBridge(agentbridge.WithLogger(slog.Default()))
//	defer b.Close()
//
//	if _, err := b.Spawn(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for resp, err := range b.Ask(ctx, "What is 2+2?", nil) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // Process response...
//	}
type Bridge interface {
	// Spawn discovers and starts the agent runtime and returns the id of the
	// new process. It returns ErrAlreadyRunning while a runtime is running,
	// and RuntimeNotFoundError if the executable cannot be found.
	Spawn(ctx context.Context) (string, error)

	// SendMessage sends a user message. If id is empty one is minted.
	// images, if non-nil, is a JSON-encoded attachment list passed through
	// untouched. Returns the id used.
	SendMessage(ctx context.Context, id, text string, images *string) (string, error)

	// Ask sends a user message and yields its responses, stopping after the
	// Done or Error response. Use iter.Pull2 for pull-based iteration.
	Ask(ctx context.Context, text string, images *string) iter.Seq2[Response, error]

	// ClearHistory asks the runtime to clear the current conversation.
	ClearHistory(ctx context.Context) (string, error)

	// Interrupt asks the runtime to stop the request in progress.
	Interrupt(ctx context.Context) (string, error)

	// ListConversations asks for the stored conversations. The list arrives
	// as the Data of the Done response with the returned id.
	ListConversations(ctx context.Context) (string, error)

	// LoadConversation switches the runtime to a stored conversation.
	LoadConversation(ctx context.Context, conversationID string) (string, error)

	// NewConversation asks the runtime to start a fresh conversation.
	NewConversation(ctx context.Context) (string, error)

	// DeleteConversation deletes a stored conversation.
	DeleteConversation(ctx context.Context, conversationID string) (string, error)

	// Send writes an arbitrary request to the runtime.
	Send(ctx context.Context, req Request) error

	// SendAll writes requests in order until the sequence ends, a send
	// fails, or ctx is done.
	SendAll(ctx context.Context, requests iter.Seq[Request]) error

	// Events yields every event published after iteration starts until ctx
	// is done or the bridge is closed. No event is dropped.
	Events(ctx context.Context) iter.Seq[Event]

	// Subscribe registers a subscriber buffering up to buffer events. A full
	// subscriber loses events rather than stalling the bridge. Call
	// Unsubscribe when done.
	Subscribe(buffer int) *Subscription

	// SubscribeQueue registers a lossless subscriber keeping the events
	// accept reports true for, or every event if accept is nil. It grows
	// without bound while its consumer falls behind. Call Unsubscribe when
	// done.
	SubscribeQueue(accept func(Event) bool) *Queue

	// Unsubscribe stops delivery to s and closes it.
	Unsubscribe(s Subscriber)

	// State reports the lifecycle state of the runtime.
	State() State

	// ProcessID returns the id of the most recently spawned runtime, or "".
	ProcessID() string

	// Stop shuts the runtime down, killing it if it outlives the shutdown
	// grace period. The bridge stays usable.
	Stop(ctx context.Context) error

	// Close stops the runtime and releases subscribers. After Close, the
	// bridge cannot be reused. Safe to call multiple times.
	Close() error
}

// NewBridge creates a bridge. No runtime is started until Spawn is called.
func NewBridge(opts ...Option) Bridge {
	return newBridge(applyOptions(opts))
}
