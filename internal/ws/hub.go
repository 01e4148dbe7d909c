package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub is the process-local registry of live connections per hangout. It does
// not fan out across instances; multi-node deployments would need an external
// pub/sub behind the same Broadcast surface.
type Hub struct {
	rooms map[string]map[*websocket.Conn]bool
	mu    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]bool),
	}
}

// Add registers a connection under a hangout.
func (h *Hub) Add(hangoutID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[hangoutID]; !ok {
		h.rooms[hangoutID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[hangoutID][conn] = true
}

// Remove drops a connection, deleting the hangout's set once empty.
func (h *Hub) Remove(hangoutID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[hangoutID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, hangoutID)
		}
	}
}

// Broadcast sends one envelope to every live connection of a hangout.
// Connections that fail the write are closed and removed.
func (h *Hub) Broadcast(hangoutID string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("hangoutId", hangoutID).Msg("failed to marshal envelope")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[hangoutID]))
	for conn := range h.rooms[hangoutID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn().Err(err).Str("hangoutId", hangoutID).Msg("websocket write error")
			conn.Close()
			h.Remove(hangoutID, conn)
		}
	}
}

// PurgeEmpty drops registries whose connection set has emptied out. Remove
// already does this inline; the periodic sweep covers sets orphaned by
// partial registration failures.
func (h *Hub) PurgeEmpty() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	purged := 0
	for id, conns := range h.rooms {
		if len(conns) == 0 {
			delete(h.rooms, id)
			purged++
		}
	}
	return purged
}

// ConnCount reports the number of live connections for a hangout.
func (h *Hub) ConnCount(hangoutID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[hangoutID])
}

// RoomCount reports the number of hangouts with a registry entry.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
