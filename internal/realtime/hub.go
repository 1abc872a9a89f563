package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub owns connection lifecycle: admission into the registry, presence
// broadcast on every membership change, and teardown on disconnect.
// Anonymous connections (permissive mode, no credential) receive presence
// broadcasts but are never registry members.
type Hub struct {
	registry *Registry
	logger   *zap.Logger

	mu        sync.Mutex
	anonymous map[*Client]struct{}
}

// NewHub constructs a hub over the registry.
func NewHub(registry *Registry, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		registry:  registry,
		logger:    logger,
		anonymous: make(map[*Client]struct{}),
	}
}

// Connect admits an authenticated (or anonymous) websocket connection: it
// registers the client, force-closes any connection it displaced, announces
// the new presence set, and starts the client's pumps. The returned client
// lives until the peer disconnects or a later connection displaces it.
func (h *Hub) Connect(userID string, conn *websocket.Conn) *Client {
	client := newClient(userID, conn, h, h.logger)

	if userID == "" {
		h.mu.Lock()
		h.anonymous[client] = struct{}{}
		h.mu.Unlock()
		h.logger.Debug("anonymous connection admitted")
	} else {
		if displaced := h.registry.Register(userID, client); displaced != nil {
			displaced.Close()
			h.logger.Debug("displaced prior connection", zap.String("user_id", userID))
		}
		h.logger.Info("user connected", zap.String("user_id", userID))
	}

	h.broadcastPresence()

	go client.writePump()
	go client.readPump()
	return client
}

// drop completes a disconnect: the registry entry is removed only while it
// still points at this client, so a displaced connection's teardown never
// evicts its successor. Presence is re-announced only when membership
// actually changed.
func (h *Hub) drop(client *Client) {
	if client.userID == "" {
		h.mu.Lock()
		delete(h.anonymous, client)
		h.mu.Unlock()
		return
	}
	if h.registry.Unregister(client.userID, client) {
		h.logger.Info("user disconnected", zap.String("user_id", client.userID))
		h.broadcastPresence()
	}
}

// broadcastPresence pushes the full online set to every connection. Full-set
// over deltas: the set is small and a missed frame self-corrects on the next
// membership change.
func (h *Hub) broadcastPresence() {
	envelope := Envelope{Channel: ChannelPresence, Payload: h.registry.Snapshot()}

	for _, conn := range h.registry.Connections() {
		conn.TrySend(envelope)
	}

	h.mu.Lock()
	spectators := make([]*Client, 0, len(h.anonymous))
	for client := range h.anonymous {
		spectators = append(spectators, client)
	}
	h.mu.Unlock()
	for _, client := range spectators {
		client.TrySend(envelope)
	}
}
