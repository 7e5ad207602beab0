package hub

import (
	"sync"

	"pulsex/contract"
	"pulsex/domain"
)

type entry struct {
	identity domain.Identity
	sink     contract.EventSink
	room     domain.Room
	inRoom   bool
}

// Registry is this process's authoritative index of its own live
// connections. It only sees connections physically held here; membership
// on other processes is reached through the broadcast bus.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
	rooms map[domain.Room]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*entry),
		rooms: make(map[domain.Room]map[string]struct{}),
	}
}

func (r *Registry) Register(connID string, identity domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &entry{identity: identity, sink: sink}
}

// JoinRoom moves the connection into room. If the connection already
// belongs to a room it is removed from that room's subscriber set under
// the same lock, so it is never subscribed to two rooms and never
// observably subscribed to none in between.
func (r *Registry) JoinRoom(connID string, room domain.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return
	}
	if e.inRoom {
		r.dropMember(e.room, connID)
	}

	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	e.room = room
	e.inRoom = true
}

// LeaveRoom removes the connection from its current room, reporting which
// room was left. Leaving with no current room is a no-op.
func (r *Registry) LeaveRoom(connID string) (domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok || !e.inRoom {
		return "", false
	}
	room := e.room
	r.dropMember(room, connID)
	e.room = ""
	e.inRoom = false
	return room, true
}

// Unregister removes the connection entirely, with an implicit leave.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return
	}
	if e.inRoom {
		r.dropMember(e.room, connID)
	}
	delete(r.conns, connID)
}

func (r *Registry) RoomOf(connID string) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok || !e.inRoom {
		return "", false
	}
	return e.room, true
}

// SinksForRoom resolves the room's local member set into live sinks.
// Two-step lookup: membership names connection IDs, the connection table
// owns the sinks.
func (r *Registry) SinksForRoom(room domain.Room) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if e, exists := r.conns[connID]; exists {
			sinks = append(sinks, e.sink)
		}
	}
	return sinks
}

func (r *Registry) Counts() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.rooms)
}

// dropMember must be called with the write lock held. Empty rooms are
// removed so the room map never leaks names.
func (r *Registry) dropMember(room domain.Room, connID string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
