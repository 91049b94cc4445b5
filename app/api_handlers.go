package huddle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/putto11262002/huddle/core"
	"github.com/putto11262002/huddle/pkg/router"
)

const defaultPageSize = 50

// APIHandler serves the read-only snapshot surface. It never mutates chat
// state, so it is safe to run concurrently with the event dispatch loop.
type APIHandler struct {
	messages core.MessageStore
	presence *core.PresenceTracker
	rooms    *core.RoomRegistry
}

func NewAPIHandler(messages core.MessageStore, presence *core.PresenceTracker, rooms *core.RoomRegistry) *APIHandler {
	return &APIHandler{messages: messages, presence: presence, rooms: rooms}
}

type MessagePageResponse struct {
	Messages []core.Message `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	room := r.URL.Query().Get("room")

	messages, hasMore, err := h.messages.Page(r.Context(), room, offset, limit)
	if err != nil {
		return fmt.Errorf("Page: %w", err)
	}
	if messages == nil {
		messages = []core.Message{}
	}

	json.NewEncoder(w).Encode(MessagePageResponse{Messages: messages, HasMore: hasMore})
	return nil
}

func (h *APIHandler) SearchMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query().Get("q")
	if query == "" {
		return router.NewJsonError(http.StatusBadRequest, `query parameter "q" is required`)
	}
	room := r.URL.Query().Get("room")

	messages, err := h.messages.Search(r.Context(), room, query)
	if err != nil {
		return fmt.Errorf("Search: %w", err)
	}
	if messages == nil {
		messages = []core.Message{}
	}

	json.NewEncoder(w).Encode(SearchResultsPayload{Messages: messages, Query: query})
	return nil
}

func (h *APIHandler) GetUsersHandler(w http.ResponseWriter, r *http.Request) error {
	json.NewEncoder(w).Encode(h.presence.Users())
	return nil
}

func (h *APIHandler) GetRoomsHandler(w http.ResponseWriter, r *http.Request) error {
	json.NewEncoder(w).Encode(h.rooms.Rooms())
	return nil
}
