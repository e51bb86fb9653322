package ws

import (
	"log/slog"
	"sync"

	"github.com/cwrk-planet/meet-service/internal/domain"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	RoomID() string
}

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.RoomID()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.RoomID()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.RoomID()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.RoomID())
		}
	}
}

// Count is the number of open connections watching roomID.
func (h *Hub) Count(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) Broadcast(roomID string, msg Message) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			slog.Debug("ws send failed", "room", roomID, "err", err)
		}
	}
}

// Publish is the registry subscriber: it fans each event out to the room.
func (h *Hub) Publish(ev domain.Event) {
	h.Broadcast(ev.RoomID, eventMessage(ev))
}
