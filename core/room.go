package core

import (
	"regexp"
	"strings"
	"sync"
)

// Room is a snapshot of a broadcast scope and its current membership.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Members holds the connection ids of the current members.
	Members []string `json:"members"`
}

var roomIDSeparator = regexp.MustCompile(`\s+`)

// NormalizeRoomID derives a room id from its display name by lowercasing it
// and collapsing whitespace runs into hyphens.
func NormalizeRoomID(name string) string {
	return roomIDSeparator.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

type roomEntry struct {
	name    string
	members map[string]struct{}
}

// RoomRegistry tracks the set of rooms and their membership. A connection is
// a member of at most one room at a time: joining a room removes the
// connection from every other room. Rooms are never destroyed, even when
// empty.
//
// Mutations are expected to come from the single event dispatch goroutine;
// the lock exists so the read-only HTTP surface can take snapshots
// concurrently.
type RoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[string]*roomEntry
	order   []string
	current map[string]string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]*roomEntry),
		current: make(map[string]string),
	}
}

// Create adds a room derived from the display name and reports whether a new
// room was created. Creating a room whose id already exists leaves the
// registry unchanged.
func (r *RoomRegistry) Create(name string) (string, bool) {
	id := NormalizeRoomID(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok {
		return id, false
	}
	r.rooms[id] = &roomEntry{name: name, members: make(map[string]struct{})}
	r.order = append(r.order, id)
	return id, true
}

// Join makes connID a member of roomID, removing it from any other room
// first. It reports whether the room exists; joining an unknown room only
// performs the removal.
func (r *RoomRegistry) Join(connID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveAll(connID)
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	room.members[connID] = struct{}{}
	r.current[connID] = roomID
	return true
}

// LeaveAll removes connID from every room's membership set.
func (r *RoomRegistry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveAll(connID)
}

func (r *RoomRegistry) leaveAll(connID string) {
	for _, room := range r.rooms {
		delete(room.members, connID)
	}
	delete(r.current, connID)
}

// CurrentRoom returns the room connID is currently a member of.
func (r *RoomRegistry) CurrentRoom(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.current[connID]
	return roomID, ok
}

// Members returns the connection ids of the room's members. It returns nil
// for unknown rooms.
func (r *RoomRegistry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(room.members))
	for id := range room.members {
		members = append(members, id)
	}
	return members
}

// Name returns the display name of the room.
func (r *RoomRegistry) Name(roomID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	return room.name, true
}

// Rooms returns a snapshot of all rooms in creation order.
func (r *RoomRegistry) Rooms() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]Room, 0, len(r.order))
	for _, id := range r.order {
		room := r.rooms[id]
		members := make([]string, 0, len(room.members))
		for connID := range room.members {
			members = append(members, connID)
		}
		rooms = append(rooms, Room{ID: id, Name: room.name, Members: members})
	}
	return rooms
}
