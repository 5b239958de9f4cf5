package broadcast

import (
	"log/slog"
	"sync"
)

// Hub is the in-process Gateway. Membership is a room -> senders index plus
// the reverse index so Drop does not scan every room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Sender
	joined map[string]map[string]struct{} // sender id -> set of rooms
	byID   map[string]Sender
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]Sender),
		joined: make(map[string]map[string]struct{}),
		byID:   make(map[string]Sender),
		logger: logger,
	}
}

func (h *Hub) JoinRoom(s Sender, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]Sender)
		h.rooms[room] = members
	}
	members[s.ID()] = s
	set := h.joined[s.ID()]
	if set == nil {
		set = make(map[string]struct{})
		h.joined[s.ID()] = set
	}
	set[room] = struct{}{}
	h.byID[s.ID()] = s
}

func (h *Hub) LeaveRoom(s Sender, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s.ID(), room)
}

func (h *Hub) Drop(s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.joined[s.ID()] {
		h.leaveLocked(s.ID(), room)
	}
	delete(h.byID, s.ID())
}

func (h *Hub) leaveLocked(id, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if set, ok := h.joined[id]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(h.joined, id)
		}
	}
}

// Emit fans the event out to the room. A member whose send fails is assumed
// disconnected and is dropped from all rooms; the event is not retried.
func (h *Hub) Emit(room, event string, payload any) {
	h.mu.RLock()
	members := make([]Sender, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	var dead []Sender
	for _, s := range members {
		if err := s.Send(event, payload); err != nil {
			h.logger.Debug("drop unreachable member", "room", room, "session", s.ID(), "error", err)
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		h.Drop(s)
	}
}

func (h *Hub) EmitTo(s Sender, event string, payload any) {
	if err := s.Send(event, payload); err != nil {
		h.logger.Debug("unicast send failed", "session", s.ID(), "error", err)
		h.Drop(s)
	}
}

// RoomSize reports the current number of members in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
