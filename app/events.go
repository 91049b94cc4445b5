package huddle

import "github.com/putto11262002/huddle/core"

// Inbound event types. Scalar payloads (user_join, create_room, join_room,
// typing, message_read) arrive as bare JSON values, everything else as an
// object; the shapes are fixed by the clients.
const (
	UserJoinEvent       = "user_join"
	SendMessageEvent    = "send_message"
	CreateRoomEvent     = "create_room"
	JoinRoomEvent       = "join_room"
	TypingEvent         = "typing"
	PrivateMessageEvent = "private_message"
	AddReactionEvent    = "add_reaction"
	MessageReadEvent    = "message_read"
	ShareFileEvent      = "share_file"
	LoadMessagesEvent   = "load_messages"
	SearchMessagesEvent = "search_messages"
)

// Outbound event types.
const (
	UserListEvent               = "user_list"
	UserJoinedEvent             = "user_joined"
	UserLeftEvent               = "user_left"
	RoomListEvent               = "room_list"
	RoomJoinedEvent             = "room_joined"
	TypingUsersEvent            = "typing_users"
	ReceiveMessageEvent         = "receive_message"
	ReactionAddedEvent          = "reaction_added"
	MessageReadReceiptEvent     = "message_read_receipt"
	NotificationEvent           = "notification"
	NewMessageNotificationEvent = "new_message_notification"
	UnreadCountUpdateEvent      = "unread_count_update"
	MessagesLoadedEvent         = "messages_loaded"
	SearchResultsEvent          = "search_results"
	MessageDeliveredEvent       = "message_delivered"
)

// Notification types carried in NotificationPayload.Type.
const (
	NotificationRoomCreated    = "room_created"
	NotificationUserJoinedRoom = "user_joined_room"
	NotificationUserLeft       = "user_left"
)

type SendMessagePayload struct {
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}

type PrivateMessagePayload struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message"`
}

type AddReactionPayload struct {
	MessageID int64  `json:"messageId" validate:"required"`
	Reaction  string `json:"reaction" validate:"required"`
}

type ShareFilePayload struct {
	Type string `json:"type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type LoadMessagesPayload struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	RoomID string `json:"roomId,omitempty"`
}

type SearchMessagesPayload struct {
	Query  string `json:"query" validate:"required"`
	RoomID string `json:"roomId,omitempty"`
}

type UserJoinedPayload struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

type UserLeftPayload struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

type RoomJoinedPayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type ReactionAddedPayload struct {
	MessageID int64  `json:"messageId"`
	Reaction  string `json:"reaction"`
	UserID    string `json:"userId"`
}

type ReadReceiptPayload struct {
	MessageID int64  `json:"messageId"`
	UserID    string `json:"userId"`
}

type NotificationPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

type NewMessageNotificationPayload struct {
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	RoomID    string `json:"roomId,omitempty"`
	IsPrivate bool   `json:"isPrivate,omitempty"`
	IsFile    bool   `json:"isFile,omitempty"`
}

type MessagesLoadedPayload struct {
	Messages []core.Message `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

type SearchResultsPayload struct {
	Messages []core.Message `json:"messages"`
	Query    string         `json:"query"`
}

type MessageDeliveredPayload struct {
	MessageID int64 `json:"messageId"`
}
