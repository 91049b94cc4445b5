package huddle

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putto11262002/huddle/core"
	"github.com/putto11262002/huddle/pkg/router"
)

type APIFixture struct {
	server   *httptest.Server
	messages core.MessageStore
	presence *core.PresenceTracker
	rooms    *core.RoomRegistry
	ctx      context.Context
	tearDown func()
	t        *testing.T
}

func NewAPIFixture(t *testing.T) *APIFixture {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := sql.Open("sqlite3", "file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	migrationfs := os.DirFS("../migrations")
	goose.SetBaseFS(migrationfs)
	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}
	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	messages := core.NewSQLiteMessageStore(db, core.DefaultHistoryLimit)
	presence := core.NewPresenceTracker()
	rooms := core.NewRoomRegistry()
	handler := NewAPIHandler(messages, presence, rooms)

	r := router.New()
	r.Get("/messages", handler.GetMessagesHandler)
	r.Get("/search", handler.SearchMessagesHandler)
	r.Get("/users", handler.GetUsersHandler)
	r.Get("/rooms", handler.GetRoomsHandler)
	server := httptest.NewServer(r)

	return &APIFixture{
		server:   server,
		messages: messages,
		presence: presence,
		rooms:    rooms,
		ctx:      ctx,
		t:        t,
		tearDown: func() {
			server.Close()
			cancel()
			db.Close()
		},
	}
}

func (f *APIFixture) get(path string, target interface{}) int {
	res, err := http.Get(f.server.URL + path)
	require.NoError(f.t, err)
	defer res.Body.Close()
	if target != nil {
		require.NoError(f.t, json.NewDecoder(res.Body).Decode(target))
	}
	return res.StatusCode
}

func Test_GetMessagesHandler(t *testing.T) {
	f := NewAPIFixture(t)
	defer f.tearDown()

	for _, body := range []string{"m1", "m2", "m3"} {
		_, err := f.messages.Append(f.ctx, core.MessageCreateInput{Sender: "alice", Body: body, RoomID: "general"})
		require.NoError(t, err)
	}

	var page MessagePageResponse
	code := f.get("/messages?limit=2", &page)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "m3", page.Messages[0].Body)

	code = f.get("/messages?offset=2&limit=2", &page)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, page.Messages, 1)
	assert.False(t, page.HasMore)

	// empty feeds return an empty list, not null
	code = f.get("/messages?room=unknown", &page)
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, page.Messages)
	assert.Empty(t, page.Messages)
}

func Test_SearchMessagesAPIHandler(t *testing.T) {
	f := NewAPIFixture(t)
	defer f.tearDown()

	_, err := f.messages.Append(f.ctx, core.MessageCreateInput{Sender: "alice", Body: "Deploy done"})
	require.NoError(t, err)

	var results SearchResultsPayload
	code := f.get("/search?q=deploy", &results)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, results.Messages, 1)
	assert.Equal(t, "deploy", results.Query)

	code = f.get("/search", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func Test_GetUsersHandler(t *testing.T) {
	f := NewAPIFixture(t)
	defer f.tearDown()

	f.presence.Join("conn-1", "alice")

	var users []core.User
	code := f.get("/users", &users)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func Test_GetRoomsHandler(t *testing.T) {
	f := NewAPIFixture(t)
	defer f.tearDown()

	f.rooms.Create("General")
	f.rooms.Create("Team Chat")

	var rooms []core.Room
	code := f.get("/rooms", &rooms)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, rooms, 2)
	assert.Equal(t, "team-chat", rooms[1].ID)
}
