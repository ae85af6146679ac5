package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/sign2text/internal/app"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// wsClient is one websocket connection subscribed to a session's events.
type wsClient struct {
	session string
	send    chan []byte
}

// AnnouncementHub pushes announcement events to the websocket clients of the
// session that produced them.
type AnnouncementHub struct {
	log *slog.Logger

	mu          sync.RWMutex
	clients     map[*wsClient]struct{}
	closed      bool
	unsubscribe func()
}

// NewAnnouncementHub creates a hub. Call Attach to start receiving events.
func NewAnnouncementHub(logger *slog.Logger) *AnnouncementHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnnouncementHub{
		log:     logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Attach subscribes the hub to a's announcement events.
func (h *AnnouncementHub) Attach(a *app.App) {
	unsub := a.Subscribe(h.Broadcast)
	h.mu.Lock()
	h.unsubscribe = unsub
	h.mu.Unlock()
}

// Broadcast queues e for every client of e's session. Slow clients miss events.
func (h *AnnouncementHub) Broadcast(e app.Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.log.Warn("failed to encode event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.session != e.SessionID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Debug("websocket client too slow, dropping event", "session", c.session, "id", e.ID)
		}
	}
}

// Clients returns the number of connected clients.
func (h *AnnouncementHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *AnnouncementHub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *AnnouncementHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close detaches the hub and disconnects every client.
func (h *AnnouncementHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	unsub := h.unsubscribe
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	// Outside h.mu: the app holds its own lock while broadcasting.
	if unsub != nil {
		unsub()
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *AnnouncementHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r)
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	c := &wsClient{session: sess.ID(), send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		return
	}
	defer h.unregister(c)
	h.log.Debug("websocket client connected", "session", c.session)

	go h.writePump(conn, c)

	// Keep connection alive by reading messages
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump sends queued events and pings until c.send is closed.
func (h *AnnouncementHub) writePump(conn *websocket.Conn, c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
