package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dkovac/seeker/internal/notify"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Frame types pushed to websocket clients.
const (
	FrameSnapshot     = "snapshot"
	FrameInputPending = "input_pending"
	FrameToolPending  = "tool_pending"
	FrameToolUpdate   = "tool_update"
	FrameAck          = "ack"
	FrameError        = "error"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Type    string         `json:"type"`
	ID      string         `json:"id,omitempty"`
	Answer  string         `json:"answer,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Note    string         `json:"user_response,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth happens before the upgrade; origins are not restricted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients, fans pending-state events out to
// them, and feeds their decisions back into the stores.
type Hub struct {
	deps       Deps
	clients    map[*wsClient]bool
	broadcast  chan *Frame
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
	quit       chan struct{}
	once       sync.Once
}

// NewHub creates a new hub.
func NewHub(deps Deps) *Hub {
	return &Hub{
		deps:       deps,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan *Frame, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		quit:       make(chan struct{}),
	}
}

// Run pumps registration and broadcast traffic until Stop. It also drains the
// notifier subscription so every store change reaches connected clients.
func (h *Hub) Run() {
	slog.Info("websocket hub started")
	defer slog.Info("websocket hub stopped")

	var events <-chan notify.Event
	cancel := func() {}
	if h.deps.Notifier != nil {
		events, cancel = h.deps.Notifier.Subscribe()
	}
	defer cancel()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("websocket client registered", "client", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Debug("websocket client unregistered", "client", client.id)

		case evt := <-events:
			h.Broadcast(frameFromEvent(evt))

		case frame := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			return
		}
	}
}

// Stop stops the hub.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}

// Broadcast sends a frame to all clients, dropping it if the hub is saturated.
func (h *Hub) Broadcast(frame *Frame) {
	select {
	case h.broadcast <- frame:
	default:
		slog.Warn("websocket broadcast channel full, dropping frame", "type", frame.Type)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func frameFromEvent(evt notify.Event) *Frame {
	frameType := FrameToolUpdate
	switch evt.Type {
	case notify.TypeInputPending:
		frameType = FrameInputPending
	case notify.TypeToolPending:
		frameType = FrameToolPending
	}
	return &Frame{Type: frameType, Payload: evt.Payload}
}

type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan *Frame
	deps Deps
}

// ServeWS upgrades the connection, registers the client, and sends the
// current pending state so the client never misses entries created before it
// connected.
func ServeWS(hub *Hub, deps Deps, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan *Frame, 256),
		deps: deps,
	}
	hub.register <- client

	client.send <- &Frame{
		Type: FrameSnapshot,
		Payload: map[string]any{
			"inputs": deps.Inputs.Pending(),
			"tools":  deps.Approvals.Pending(),
		},
	}

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read error", "client", c.id, "error", err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Error("websocket frame unmarshal failed", "client", c.id, "error", err)
			continue
		}
		c.handleFrame(&frame)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				slog.Error("websocket frame marshal failed", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Error("websocket write failed", "client", c.id, "error", err)
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

// handleFrame applies a client decision. Losing a race against another
// responder is reported back as an error frame, not a broken connection.
func (c *wsClient) handleFrame(frame *Frame) {
	id := strings.TrimSpace(frame.ID)
	if id == "" {
		c.reply(&Frame{Type: FrameError, Reason: "id is required"})
		return
	}

	var accepted bool
	switch frame.Type {
	case "respond":
		accepted = c.deps.Inputs.Answer(id, frame.Answer, "web")
	case "approve":
		accepted = c.deps.Decider.Approve(id, frame.Note, "web")
	case "deny":
		accepted = c.deps.Decider.Deny(id, frame.Reason, "web")
	default:
		slog.Warn("unknown websocket frame type", "client", c.id, "type", frame.Type)
		c.reply(&Frame{Type: FrameError, ID: id, Reason: "unknown frame type: " + frame.Type})
		return
	}

	if !accepted {
		c.reply(&Frame{Type: FrameError, ID: id, Reason: "unknown or already decided"})
		return
	}
	c.reply(&Frame{Type: FrameAck, ID: id})
}

func (c *wsClient) reply(frame *Frame) {
	select {
	case c.send <- frame:
	default:
		slog.Warn("websocket client send channel full, dropping frame", "client", c.id)
	}
}
