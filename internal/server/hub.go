// Package server carries bridge events to websocket clients and accepts
// commands from them.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wagiedev/agentbridge/internal/message"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 1024
	maxCommandSize = 16 * 1024 * 1024
)

// Event names sent by the hub in addition to the event topics.
const (
	EventConnected     = "connected"
	EventCommandResult = "command_result"
)

// Commander is the command surface the hub drives.
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

// Envelope is every message the hub writes to a client.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Command is a message a client writes to the hub.
type Command struct {
	Command        string  `json:"command"`
	ID             string  `json:"id,omitempty"`
	Message        string  `json:"message,omitempty"`
	Images         *string `json:"images,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
}

// Result acknowledges a Command to the client that sent it. ID is the
// request id the runtime will echo, or the process id for spawn_agent.
type Result struct {
	Command string `json:"command"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Hub is a Sink that fans events out to websocket clients.
type Hub struct {
	log       *slog.Logger
	commander Commander
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub dispatching client commands to commander.
// originAllowed validates the Origin header of upgrade requests; nil allows
// only requests without one.
func NewHub(log *slog.Logger, commander Commander, originAllowed func(string) bool) *Hub {
	return &Hub{
		log:       log.With("component", "ws_hub"),
		commander: commander,
		clients:   make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}

				return originAllowed != nil && originAllowed(origin)
			},
		},
	}
}

// Publish implements sink.Sink. Clients whose buffer is full miss the event.
func (h *Hub) Publish(ev message.Event) {
	payload, err := json.Marshal(Envelope{Event: string(ev.Topic()), Payload: ev})
	if err != nil {
		h.log.Error("Failed to encode event", "topic", ev.Topic(), "error", err)

		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		c.enqueue(payload)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)

		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()

		return
	}

	c.reply(EventConnected, map[string]string{"client_id": c.id})

	go c.writePump()
	c.readPump()
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.closed = true
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	h.clients[c] = struct{}{}
	h.log.Info("Client connected", "client_id", c.id)

	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Info("Client disconnected", "client_id", c.id)
	}
}

// dispatch runs cmd and returns its acknowledgement.
func (h *Hub) dispatch(ctx context.Context, cmd Command) Result {
	var (
		id  string
		err error
	)

	switch cmd.Command {
	case "spawn_agent":
		id, err = h.commander.Spawn(ctx)
	case "send_message":
		id, err = h.commander.SendMessage(ctx, cmd.ID, cmd.Message, cmd.Images)
	case "clear_history":
		id, err = h.commander.ClearHistory(ctx)
	case "interrupt":
		id, err = h.commander.Interrupt(ctx)
	case "list_conversations":
		id, err = h.commander.ListConversations(ctx)
	case "load_conversation":
		id, err = h.commander.LoadConversation(ctx, cmd.ConversationID)
	case "new_conversation":
		id, err = h.commander.NewConversation(ctx)
	case "delete_conversation":
		id, err = h.commander.DeleteConversation(ctx, cmd.ConversationID)
	default:
		err = fmt.Errorf("unknown command %q", cmd.Command)
	}

	result := Result{Command: cmd.Command, ID: id}
	if err != nil {
		h.log.Warn("Command failed", "command", cmd.Command, "error", err)
		result.Error = err.Error()
	}

	return result
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	// send is closed by the hub under its lock, never by the client.
	send chan []byte
}

func (c *client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.hub.log.Debug("Client buffer full, dropping event", "client_id", c.id)
	}
}

func (c *client) reply(event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		c.hub.log.Error("Failed to encode reply", "event", event, "error", err)

		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if _, ok := c.hub.clients[c]; ok {
		c.enqueue(data)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("Websocket read failed", "client_id", c.id, "error", err)
			}

			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.reply(EventCommandResult, Result{Error: fmt.Sprintf("invalid command: %v", err)})

			continue
		}

		c.hub.log.Debug("Command received", "client_id", c.id, "command", cmd.Command)
		c.reply(EventCommandResult, c.hub.dispatch(context.Background(), cmd))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
