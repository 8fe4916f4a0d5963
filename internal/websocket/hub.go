// Package websocket streams generation progress to browsers. Each
// generation session is a room; every sub-step the orchestrator emits
// is fanned out to the room's subscribers.
package websocket

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"siteforge/internal/agents"
	"siteforge/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub maintains active client connections grouped by session ID and
// fans generation progress events out to them. It implements
// agents.Broadcaster.
type Hub struct {
	// Subscribed clients by session ID.
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan *sessionEvent
	shutdown   chan struct{}

	log *zap.Logger
	mu  sync.RWMutex
}

type sessionEvent struct {
	sessionID string
	payload   []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		allowedOriginsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
		var allowedOrigins []string
		if allowedOriginsEnv != "" {
			allowedOrigins = strings.Split(allowedOriginsEnv, ",")
		} else {
			allowedOrigins = []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			}
		}

		for _, allowed := range allowedOrigins {
			if strings.TrimSpace(allowed) == origin {
				return true
			}
		}

		// Empty origin is only acceptable outside production, for
		// command-line clients and tests.
		return origin == "" && os.Getenv("ENVIRONMENT") != "production"
	},
}

// NewHub creates a hub. Call Run in a goroutine before serving
// connections.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *sessionEvent, 256),
		shutdown:   make(chan struct{}),
		log:        log,
	}
}

// Run drives the hub's main loop until Shutdown is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			h.log.Info("websocket hub shut down")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case evt := <-h.events:
			h.deliver(evt)
		}
	}
}

// Shutdown stops the hub loop and disconnects all clients.
func (h *Hub) Shutdown() {
	close(h.shutdown)
}

// BroadcastSession queues a progress event for every client subscribed
// to the session. Delivery is best-effort: a full or absent room never
// blocks the orchestrator.
func (h *Hub) BroadcastSession(sessionID string, event *agents.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("failed to marshal progress event", zap.Error(err))
		return
	}

	select {
	case h.events <- &sessionEvent{sessionID: sessionID, payload: payload}:
	default:
		h.log.Warn("event queue full, dropping progress event",
			zap.String("session_id", sessionID),
			zap.String("event", event.Type))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[client.SessionID] == nil {
		h.rooms[client.SessionID] = make(map[*Client]bool)
	}
	h.rooms[client.SessionID][client] = true

	metrics.Get().WebSocketConnections.Inc()
	h.log.Debug("websocket client subscribed",
		zap.String("session_id", client.SessionID),
		zap.Uint("user_id", client.UserID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[client.SessionID]
	if room == nil || !room[client] {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.SessionID)
	}
	close(client.send)

	metrics.Get().WebSocketConnections.Dec()
	h.log.Debug("websocket client unsubscribed",
		zap.String("session_id", client.SessionID),
		zap.Uint("user_id", client.UserID))
}

func (h *Hub) deliver(evt *sessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[evt.sessionID] {
		select {
		case client.send <- evt.payload:
			metrics.Get().WebSocketMessagesTotal.WithLabelValues("out").Inc()
		default:
			// Slow consumer; drop the event rather than stall the room.
		}
	}
}

// ServeSession upgrades an HTTP request and subscribes it to a
// session's progress stream.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string, userID uint) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		SessionID: sessionID,
		UserID:    userID,
		send:      make(chan []byte, 64),
		joined:    time.Now(),
	}

	h.register <- client
	go client.writePump()
	go client.readPump()
	return nil
}
