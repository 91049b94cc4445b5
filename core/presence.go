package core

import (
	"slices"
	"sync"
)

// User is a connected participant. The id is the owning connection's id;
// there is no account identity beyond the live connection.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PresenceTracker is the directory of connected users and their typing state.
// Typing is global across rooms, matching the behavior the clients expect.
type PresenceTracker struct {
	mu          sync.RWMutex
	users       map[string]User
	userOrder   []string
	typing      map[string]string
	typingOrder []string
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		users:  make(map[string]User),
		typing: make(map[string]string),
	}
}

// Join registers a user for the connection. It returns
// ErrDuplicateConnection if the connection already has a registered user.
func (p *PresenceTracker) Join(connID, username string) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[connID]; ok {
		return User{}, ErrDuplicateConnection
	}
	user := User{ID: connID, Username: username}
	p.users[connID] = user
	p.userOrder = append(p.userOrder, connID)
	return user, nil
}

// Leave removes the connection's user and typing entry. It reports whether a
// user was registered for the connection.
func (p *PresenceTracker) Leave(connID string) (User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[connID]
	if !ok {
		return User{}, false
	}
	delete(p.users, connID)
	p.userOrder = remove(p.userOrder, connID)
	p.clearTyping(connID)
	return user, true
}

// Get returns the user registered for the connection.
func (p *PresenceTracker) Get(connID string) (User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	user, ok := p.users[connID]
	return user, ok
}

// Users returns the connected users in join order.
func (p *PresenceTracker) Users() []User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := make([]User, 0, len(p.userOrder))
	for _, id := range p.userOrder {
		users = append(users, p.users[id])
	}
	return users
}

// SetTyping updates the connection's typing flag and returns the usernames of
// everyone currently typing. Connections without a registered user are
// ignored.
func (p *PresenceTracker) SetTyping(connID string, typing bool) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[connID]
	if ok {
		if typing {
			if _, already := p.typing[connID]; !already {
				p.typing[connID] = user.Username
				p.typingOrder = append(p.typingOrder, connID)
			}
		} else {
			p.clearTyping(connID)
		}
	}
	return p.typingUsers()
}

// TypingUsers returns the usernames of everyone currently typing.
func (p *PresenceTracker) TypingUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.typingUsers()
}

func (p *PresenceTracker) typingUsers() []string {
	names := make([]string, 0, len(p.typingOrder))
	for _, id := range p.typingOrder {
		names = append(names, p.typing[id])
	}
	return names
}

func (p *PresenceTracker) clearTyping(connID string) {
	if _, ok := p.typing[connID]; !ok {
		return
	}
	delete(p.typing, connID)
	p.typingOrder = remove(p.typingOrder, connID)
}

func remove(ids []string, id string) []string {
	idx := slices.Index(ids, id)
	if idx == -1 {
		return ids
	}
	return slices.Delete(ids, idx, idx+1)
}
