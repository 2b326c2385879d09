package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client represents a WebSocket connection bound to one session
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string
}

// Hub maintains active clients and fans messages out per session
type Hub struct {
	Clients    map[string]map[*Client]bool // sessionID -> clients
	Broadcast  chan *Message
	Register   chan *Client
	Unregister chan *Client
	Disconnect chan string
	Mu         sync.RWMutex

	upgrader websocket.Upgrader
	done     chan struct{}
}

// Message is pushed to every page open for a session
type Message struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"-"`
	State      string    `json:"state,omitempty"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// Message types
const (
	MsgStateChange = "state.change"
)

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Broadcast:  make(chan *Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Disconnect: make(chan string, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
}

// Publish queues msg for the session's clients without blocking. It reports
// false when the queue is full or the hub has stopped.
func (h *Hub) Publish(msg *Message) bool {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.Broadcast <- msg:
		return true
	default:
		log.Warn().Str("session", msg.SessionID).Msg("websocket broadcast queue full, message dropped")
		return false
	}
}

// DisconnectSession closes every connection of sessionID.
func (h *Hub) DisconnectSession(sessionID string) {
	select {
	case <-h.done:
	case h.Disconnect <- sessionID:
	}
}

// Count returns the number of connected clients for sessionID
func (h *Hub) Count(sessionID string) int {
	h.Mu.RLock()
	defer h.Mu.RUnlock()
	return len(h.Clients[sessionID])
}

// Serve upgrades the request and attaches the connection to sessionID
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		SessionID: sessionID,
	}

	select {
	case h.Register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump(r.Context())
	return nil
}
