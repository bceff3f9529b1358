package client

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wagiedev/agentbridge/internal/config"
	"github.com/wagiedev/agentbridge/internal/errors"
	"github.com/wagiedev/agentbridge/internal/launcher"
	"github.com/wagiedev/agentbridge/internal/message"
	"github.com/wagiedev/agentbridge/internal/sink"
	"github.com/wagiedev/agentbridge/internal/subprocess"
)

// Bridge is the command surface over one supervised agent runtime.
type Bridge struct {
	log         *slog.Logger
	base        *slog.Logger
	options     *config.Options
	supervisor  *subprocess.Supervisor
	broadcaster *sink.Broadcaster

	// newID mints ids for commands that carry no caller id.
	newID func() string

	mu     sync.Mutex
	closed bool
}

// New creates a bridge. No child is started until Spawn is called.
func New(options *config.Options) *Bridge {
	options = options.WithDefaults()

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	broadcaster := sink.NewBroadcaster(log)

	return &Bridge{
		log:         log.With("component", "bridge"),
		base:        log,
		options:     options,
		supervisor:  subprocess.NewSupervisor(log, options, sink.Fanout{options.Sink, broadcaster}),
		broadcaster: broadcaster,
		newID:       uuid.NewString,
	}
}

// Spawn discovers and starts the agent runtime and returns the id of the
// new process. It does not wait for the runtime to report ready.
func (b *Bridge) Spawn(ctx context.Context) (string, error) {
	if err := b.checkOpen(); err != nil {
		return "", err
	}

	if b.supervisor.State() == subprocess.StateRunning {
		return "", &errors.SpawnError{Err: errors.ErrAlreadyRunning}
	}

	spec, err := launcher.Resolve(ctx, b.base, b.options)
	if err != nil {
		return "", &errors.SpawnError{Err: err}
	}

	p, err := b.supervisor.Spawn(ctx, spec)
	if err != nil {
		return "", err
	}

	return p.ID(), nil
}

// SendMessage sends a user message under the caller's request id. If id is
// empty, one is minted. images, if non-nil, is a JSON-encoded attachment
// list passed through untouched. The id used is returned.
func (b *Bridge) SendMessage(ctx context.Context, id, text string, images *string) (string, error) {
	if id == "" {
		id = b.newID()
	}

	req := message.Request{
		ID:      id,
		Kind:    message.KindUserMessage,
		Message: &text,
		Images:  images,
	}

	return id, b.Send(ctx, req)
}

// ClearHistory asks the runtime to clear the current conversation.
func (b *Bridge) ClearHistory(ctx context.Context) (string, error) {
	return b.command(ctx, message.KindClearHistory, nil)
}

// Interrupt asks the runtime to stop the request in progress.
func (b *Bridge) Interrupt(ctx context.Context) (string, error) {
	return b.command(ctx, message.KindInterrupt, nil)
}

// ListConversations asks the runtime for its stored conversations. The
// list arrives as the data of the Done response with the returned id.
func (b *Bridge) ListConversations(ctx context.Context) (string, error) {
	return b.command(ctx, message.KindListConversations, nil)
}

// LoadConversation asks the runtime to switch to a stored conversation.
func (b *Bridge) LoadConversation(ctx context.Context, conversationID string) (string, error) {
	if conversationID == "" {
		return "", errors.ErrMissingConversationID
	}

	return b.command(ctx, message.KindLoadConversation, &conversationID)
}

// NewConversation asks the runtime to start a fresh conversation.
func (b *Bridge) NewConversation(ctx context.Context) (string, error) {
	return b.command(ctx, message.KindNewConversation, nil)
}

// DeleteConversation asks the runtime to delete a stored conversation.
func (b *Bridge) DeleteConversation(ctx context.Context, conversationID string) (string, error) {
	if conversationID == "" {
		return "", errors.ErrMissingConversationID
	}

	return b.command(ctx, message.KindDeleteConversation, &conversationID)
}

func (b *Bridge) command(ctx context.Context, kind message.Kind, conversationID *string) (string, error) {
	id := b.newID()

	return id, b.Send(ctx, message.Request{ID: id, Kind: kind, ConversationID: conversationID})
}

// Ask sends text as a new user message and yields the responses correlated
// with it, ending after the runtime reports Done or Error. If the child
// exits first, or ctx is done, the error is yielded and iteration ends.
//
// Responses are queued without loss however slowly the caller consumes
// them; only responses carrying the request's id are kept.
func (b *Bridge) Ask(ctx context.Context, text string, images *string) iter.Seq2[message.Response, error] {
	return func(yield func(message.Response, error) bool) {
		id := b.newID()

		q := b.SubscribeQueue(func(ev message.Event) bool {
			resp, ok := ev.(message.Response)

			return ok && resp.RequestID() == id
		})
		defer b.Unsubscribe(q)

		if _, err := b.SendMessage(ctx, id, text, images); err != nil {
			yield(nil, err)

			return
		}

		p := b.Process()

		for {
			if !deliver(q, yield) {
				return
			}

			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())

				return
			case <-q.Ready():
			case <-q.Done():
				if deliver(q, yield) {
					yield(nil, errors.ErrBridgeClosed)
				}

				return
			case <-p.Done():
				// Everything the child wrote is published before Done closes.
				if deliver(q, yield) {
					yield(nil, exitError(p, id))
				}

				return
			}
		}
	}
}

// deliver yields the queued responses. It reports false once iteration
// should stop: the caller stopped, or a terminal response was yielded.
func deliver(q *sink.Queue, yield func(message.Response, error) bool) bool {
	for ev, ok := q.Pop(); ok; ev, ok = q.Pop() {
		resp := ev.(message.Response)

		if !yield(resp, nil) {
			return false
		}

		switch resp.Type() {
		case message.TypeDone, message.TypeError:
			return false
		}
	}

	return true
}

func exitError(p *subprocess.Process, id string) error {
	if err := p.Err(); err != nil {
		return fmt.Errorf("%w: exited before request %s completed: %w", errors.ErrAgentNotRunning, id, err)
	}

	return fmt.Errorf("%w: exited before request %s completed", errors.ErrAgentNotRunning, id)
}

// Send writes an arbitrary request to the running child.
func (b *Bridge) Send(ctx context.Context, req message.Request) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	p := b.supervisor.Current()
	if p == nil || p.State() != subprocess.StateRunning {
		return errors.ErrAgentNotRunning
	}

	return p.Send(ctx, req)
}

// Subscribe returns a channel sink receiving every event published from now
// on. It drops events once buffer are waiting. Call Unsubscribe when done.
func (b *Bridge) Subscribe(buffer int) *sink.Channel {
	return b.broadcaster.Subscribe(buffer)
}

// SubscribeQueue returns a lossless queue receiving the events published
// from now on that accept reports true for, or every event if accept is
// nil. Call Unsubscribe when done.
func (b *Bridge) SubscribeQueue(accept func(message.Event) bool) *sink.Queue {
	return b.broadcaster.SubscribeQueue(accept)
}

// Unsubscribe stops delivery to s and closes it.
func (b *Bridge) Unsubscribe(s sink.Subscriber) {
	b.broadcaster.Unsubscribe(s)
}

// Events yields every event published after iteration starts, without
// loss, until ctx is done or the bridge is closed.
func (b *Bridge) Events(ctx context.Context) iter.Seq[message.Event] {
	return func(yield func(message.Event) bool) {
		q := b.SubscribeQueue(nil)
		defer b.Unsubscribe(q)

		for ev := range q.Events(ctx) {
			if !yield(ev) {
				return
			}
		}
	}
}

// State reports the lifecycle state of the agent runtime.
func (b *Bridge) State() subprocess.State {
	return b.supervisor.State()
}

// Process returns the most recently spawned process, or nil.
func (b *Bridge) Process() *subprocess.Process {
	return b.supervisor.Current()
}

// Stop shuts the running child down. The bridge stays usable and a new
// child may be spawned afterwards.
func (b *Bridge) Stop(ctx context.Context) error {
	return b.supervisor.Shutdown(ctx)
}

// Close stops the child and releases subscribers. Commands issued after
// Close return errors.ErrBridgeClosed. Safe to call multiple times.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()

		return nil
	}

	b.closed = true
	b.mu.Unlock()

	b.log.Info("Closing bridge")

	err := b.supervisor.Shutdown(context.Background())
	b.broadcaster.Close()

	return err
}

func (b *Bridge) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBridgeClosed
	}

	return nil
}
