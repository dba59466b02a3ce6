package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zproposal/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	eventQueue = 256
)

// eventFrame is the JSON envelope pushed to browsers.
type eventFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WebSocketHub fans workspace events out to connected browsers. All socket
// writes happen on the Run goroutine.
type WebSocketHub struct {
	mu     sync.RWMutex
	conns  map[*websocket.Conn]struct{}
	events chan []byte
	joins  chan *websocket.Conn
	leaves chan *websocket.Conn
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

func NewWebSocketHub(logger *logging.Logger) *WebSocketHub {
	return &WebSocketHub{
		conns:  make(map[*websocket.Conn]struct{}),
		events: make(chan []byte, eventQueue),
		joins:  make(chan *websocket.Conn),
		leaves: make(chan *websocket.Conn),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run serves joins, leaves and events until Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.conns {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		case c := <-h.joins:
			h.mu.Lock()
			h.conns[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("websocket client joined (%s)", c.RemoteAddr())
		case c := <-h.leaves:
			h.mu.Lock()
			if _, ok := h.conns[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()
		case frame := <-h.events:
			h.deliver(frame)
		}
	}
}

func (h *WebSocketHub) deliver(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	for c := range h.conns {
		_ = c.SetWriteDeadline(deadline)
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("dropping websocket client %s: %v", c.RemoteAddr(), err)
			h.drop(c)
		}
	}
}

// drop closes c and forgets it. Callers hold mu.
func (h *WebSocketHub) drop(c *websocket.Conn) {
	_ = c.Close()
	delete(h.conns, c)
}

// Stop ends Run and closes every client.
func (h *WebSocketHub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast queues an event for every client. It never blocks; when the
// queue is full the event is dropped.
func (h *WebSocketHub) Broadcast(eventType string, data interface{}) {
	frame, err := json.Marshal(eventFrame{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("failed to encode %s event: %v", eventType, err)
		return
	}

	select {
	case h.events <- frame:
	default:
		h.logger.WithContext("type", eventType).Warn("websocket queue full, event dropped")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header and browser requests
// from the page this server served.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// handleWebSocket upgrades the request and registers the connection. Client
// messages are read and discarded so close frames are noticed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed: %v", err)
		return
	}

	hub := s.wsHub
	select {
	case hub.joins <- conn:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case hub.leaves <- conn:
			case <-hub.done:
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
