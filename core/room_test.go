package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NormalizeRoomID(t *testing.T) {
	tcs := []struct {
		name string
		exp  string
	}{
		{name: "General", exp: "general"},
		{name: "Team Chat", exp: "team-chat"},
		{name: "  Team   Chat  ", exp: "team-chat"},
		{name: "already-normal", exp: "already-normal"},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.exp, NormalizeRoomID(tc.name))
	}
}

func Test_RoomRegistry_Create(t *testing.T) {
	registry := NewRoomRegistry()

	id, created := registry.Create("Team Chat")
	assert.Equal(t, "team-chat", id)
	assert.True(t, created)

	// same id, different display name: no new room, original name wins
	id, created = registry.Create("team   chat")
	assert.Equal(t, "team-chat", id)
	assert.False(t, created)

	name, ok := registry.Name("team-chat")
	assert.True(t, ok)
	assert.Equal(t, "Team Chat", name)
}

func Test_RoomRegistry_Join(t *testing.T) {
	registry := NewRoomRegistry()
	registry.Create("General")
	registry.Create("Random")

	assert.True(t, registry.Join("conn-1", "general"))
	assert.ElementsMatch(t, []string{"conn-1"}, registry.Members("general"))

	// joining another room leaves the first
	assert.True(t, registry.Join("conn-1", "random"))
	assert.Empty(t, registry.Members("general"))
	assert.ElementsMatch(t, []string{"conn-1"}, registry.Members("random"))

	current, ok := registry.CurrentRoom("conn-1")
	assert.True(t, ok)
	assert.Equal(t, "random", current)

	// joining an unknown room still removes the connection from its room
	assert.False(t, registry.Join("conn-1", "nope"))
	assert.Empty(t, registry.Members("random"))
	_, ok = registry.CurrentRoom("conn-1")
	assert.False(t, ok)
}

func Test_RoomRegistry_LeaveAll(t *testing.T) {
	registry := NewRoomRegistry()
	registry.Create("General")
	registry.Join("conn-1", "general")
	registry.Join("conn-2", "general")

	registry.LeaveAll("conn-1")
	assert.ElementsMatch(t, []string{"conn-2"}, registry.Members("general"))

	// rooms survive their last member leaving
	registry.LeaveAll("conn-2")
	assert.Empty(t, registry.Members("general"))
	_, ok := registry.Name("general")
	assert.True(t, ok)
}

func Test_RoomRegistry_Rooms(t *testing.T) {
	registry := NewRoomRegistry()
	registry.Create("General")
	registry.Create("Random")
	registry.Create("Team Chat")
	registry.Join("conn-1", "random")

	rooms := registry.Rooms()
	// creation order
	assert.Equal(t, []string{"general", "random", "team-chat"}, []string{rooms[0].ID, rooms[1].ID, rooms[2].ID})
	assert.Equal(t, "Team Chat", rooms[2].Name)
	assert.ElementsMatch(t, []string{"conn-1"}, rooms[1].Members)
}
