package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/tagfollower/internal/log"
	"github.com/ayusman/tagfollower/internal/publish"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// writeTimeout bounds how long a slow client can hold up the control loop.
const writeTimeout = 100 * time.Millisecond

// CommandHub broadcasts every published command to websocket clients. It
// is a publish.Publisher, so it sits beside the other transports.
type CommandHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	closed  bool

	// writeMu keeps one writer per connection; mu is never held while writing
	writeMu sync.Mutex
}

// NewCommandHub creates an empty hub.
func NewCommandHub() *CommandHub {
	return &CommandHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *CommandHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "Command topic closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	defer h.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish sends msg to all connected clients. Clients that cannot keep up
// are dropped.
func (h *CommandHub) Publish(msg publish.Twist) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return publish.ErrClosed
	}
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(conn)
			conn.Close()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *CommandHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients. It is safe to call more than once.
func (h *CommandHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "follower stopped"),
			time.Now().Add(writeTimeout))
		conn.Close()
		delete(h.clients, conn)
	}
	return nil
}

func (h *CommandHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}
