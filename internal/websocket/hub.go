package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"slidecast-backend/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub accepts websocket connections, runs them through the access gate and
// keeps track of every live client. Session and room state live in the
// realtime package; the hub owns only the transport.
type Hub struct {
	gate       *realtime.Gate
	presence   *realtime.Presence
	controller *realtime.Controller
	queueSize  int

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(gate *realtime.Gate, presence *realtime.Presence, controller *realtime.Controller, sendQueueSize int) *Hub {
	return &Hub{
		gate:       gate,
		presence:   presence,
		controller: controller,
		queueSize:  sendQueueSize,
		clients:    make(map[string]*Client),
	}
}

// HandleWebSocket authenticates and upgrades one connection. Presenters
// must bring a valid token and are refused before the upgrade if they do
// not; participants without a token get an anonymous identity minted for
// this connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wantPresenter := r.URL.Query().Get("role") == string(realtime.RolePresenter)
	token := r.URL.Query().Get("token")

	identity, aerr := h.gate.Authenticate(wantPresenter, token)
	if aerr != nil {
		status := http.StatusUnauthorized
		if aerr.Code == realtime.CodeForbidden {
			status = http.StatusForbidden
		}
		writeGateError(w, r, status, aerr)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(h, conn, uuid.NewString(), identity, h.queueSize)
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("WebSocket connected: %s as %s (total: %d)", c.id, c.identity.Role, total)
}

// unregister runs once per connection from the read pump's teardown. The
// presence cleanup announces the departure if a session was still bound; a
// session rebound elsewhere by a resume is left alone.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	h.mu.Unlock()

	h.presence.Disconnect(c.id)
	log.Printf("WebSocket disconnected: %s", c.id)
}

// ClientCount reports the number of live connections, joined or not.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every live connection. Called during process shutdown
// after the HTTP listener stopped accepting upgrades.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func writeGateError(w http.ResponseWriter, r *http.Request, status int, aerr *realtime.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       string(aerr.Code),
			"message":    aerr.Message,
			"request_id": r.Header.Get("X-Request-ID"),
		},
	})
}
