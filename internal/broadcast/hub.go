// Package broadcast fans coordinator events out to the connections watching a
// session. Each session maps to a room with overlapping groups so payloads
// with different visibility reach only the connections that should see them.
package broadcast

import (
	"sync"

	"livequiz-service/internal/domain"
)

// Group names a visibility scope inside a room.
type Group string

const (
	// GroupAll covers the host plus every admitted player.
	GroupAll Group = "all"
	// GroupHost covers host control connections only.
	GroupHost Group = "host"
	// GroupPlayers covers admitted players only.
	GroupPlayers Group = "players"
)

type member struct {
	ch     chan domain.Event
	groups map[Group]struct{}
}

type room struct {
	members map[string]*member
}

// Hub is the in-process room broadcaster.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// Subscribe registers a connection with a room and returns its event channel
// plus a cancel function. A fresh subscriber belongs to no group until Join;
// direct delivery works regardless of group membership.
func (h *Hub) Subscribe(code, connID string) (<-chan domain.Event, func()) {
	h.mu.Lock()
	r, ok := h.rooms[code]
	if !ok {
		r = &room{members: make(map[string]*member)}
		h.rooms[code] = r
	}
	m := &member{
		ch:     make(chan domain.Event, 32),
		groups: make(map[Group]struct{}),
	}
	r.members[connID] = m
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		r, ok := h.rooms[code]
		if !ok {
			return
		}
		if m, ok := r.members[connID]; ok {
			delete(r.members, connID)
			close(m.ch)
		}
		if len(r.members) == 0 {
			delete(h.rooms, code)
		}
	}
	return m.ch, cancel
}

// Join adds a connection to the given groups.
func (h *Hub) Join(code, connID string, groups ...Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.lookup(code, connID); m != nil {
		for _, g := range groups {
			m.groups[g] = struct{}{}
		}
	}
}

// Leave removes a connection from the given groups; direct delivery still
// works until the subscription is cancelled.
func (h *Hub) Leave(code, connID string, groups ...Group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.lookup(code, connID); m != nil {
		for _, g := range groups {
			delete(m.groups, g)
		}
	}
}

// LeaveAll strips a connection of every group membership.
func (h *Hub) LeaveAll(code, connID string) {
	h.Leave(code, connID, GroupAll, GroupHost, GroupPlayers)
}

// Publish delivers an event to every room member in the group.
func (h *Hub) Publish(code string, group Group, event domain.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[code]
	if !ok {
		return
	}
	for _, m := range r.members {
		if _, ok := m.groups[group]; ok {
			deliver(m.ch, event)
		}
	}
}

// Direct delivers an event to a single connection, reporting whether the
// connection was present.
func (h *Hub) Direct(code, connID string, event domain.Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.lookup(code, connID)
	if m == nil {
		return false
	}
	deliver(m.ch, event)
	return true
}

// lookup must be called with h.mu held.
func (h *Hub) lookup(code, connID string) *member {
	r, ok := h.rooms[code]
	if !ok {
		return nil
	}
	return r.members[connID]
}

// deliver drops the oldest buffered event instead of blocking on a slow
// consumer, so one stalled connection cannot hold up the room.
func deliver(ch chan domain.Event, event domain.Event) {
	select {
	case ch <- event:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- event
	}
}
