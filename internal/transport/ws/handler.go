package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"avalon/internal/app"
	"avalon/internal/domain"
)

// Hub fans the session's output out to local subscribers. It implements
// app.Renderer, so it is only fed from the session loop and never blocks it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a subscriber
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

// Unregister removes a subscriber
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Count returns the number of subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Render pushes a full view to every subscriber
func (h *Hub) Render(view app.View) {
	h.broadcast(NewServerMessage(MsgView, view))
}

// Chat pushes one chat line to every subscriber
func (h *Hub) Chat(entry domain.ChatEntry) {
	h.broadcast(NewServerMessage(MsgChat, entry))
}

// Alert pushes a failure notice to every subscriber
func (h *Hub) Alert(message string) {
	h.broadcast(NewServerMessage(MsgAlert, &AlertPayload{Message: message}))
}

func (h *Hub) broadcast(msg *ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if err := c.Send(msg); err != nil {
			h.logger.Error("failed to encode message", "type", msg.Type, "error", err)
			return
		}
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// ViewSource provides the view a new subscriber starts from
type ViewSource interface {
	View() (app.View, error)
}

// Handler handles subscriber WebSocket connections
type Handler struct {
	hub      *Hub
	views    ViewSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, views ViewSource, logger *slog.Logger) *Handler {
	return &Handler{
		hub:   hub,
		views: views,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The control API only listens locally
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	view, err := h.views.View()
	if err != nil {
		http.Error(w, "Session closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	client := NewClient(conn, h.hub, id, h.logger)
	h.hub.Register(client)

	h.logger.Info("subscriber connected", "subscriber", id)

	client.Send(NewServerMessage(MsgConnected, &ConnectedPayload{
		SubscriberID: id,
		View:         view,
	}))

	client.Run()

	h.logger.Info("subscriber disconnected", "subscriber", id)
}
