package core

import (
	"context"
	"errors"
	"time"
)

// SearchLimit caps the number of messages returned by a single search.
const SearchLimit = 50

// Reaction is a single emoji reaction left on a message by a connection.
type Reaction struct {
	Reaction string `json:"reaction"`
	UserID   string `json:"userId"`
}

// Message represents an entry in the chat feed. A message is immutable after
// creation except for Delivered, Reactions and ReadBy, which only ever grow.
// The JSON field names are the wire names the clients consume.
type Message struct {
	// ID is assigned by the store and increases monotonically with
	// insertion order.
	ID       int64     `json:"id"`
	SenderID string    `json:"senderId,omitempty"`
	Sender   string    `json:"sender"`
	Body     string    `json:"message,omitempty"`
	SentAt   time.Time `json:"timestamp"`
	// RoomID is empty for private messages, file shares, and global sends.
	RoomID      string     `json:"room,omitempty"`
	IsPrivate   bool       `json:"isPrivate,omitempty"`
	RecipientID string     `json:"recipientId,omitempty"`
	IsFile      bool       `json:"isFile,omitempty"`
	FileType    string     `json:"fileType,omitempty"`
	FileName    string     `json:"fileName,omitempty"`
	FileURL     string     `json:"fileUrl,omitempty"`
	Delivered   bool       `json:"delivered"`
	System      bool       `json:"system,omitempty"`
	Reactions   []Reaction `json:"reactions,omitempty"`
	ReadBy      []string   `json:"readBy,omitempty"`
}

// MessageCreateInput represents the input for appending a message to the feed.
type MessageCreateInput struct {
	SenderID    string
	Sender      string
	Body        string
	RoomID      string
	IsPrivate   bool
	RecipientID string
	IsFile      bool
	FileType    string
	FileName    string
	FileURL     string
	Delivered   bool
	System      bool
}

var (
	// ErrMessageNotFound is returned when an operation references a message
	// id that is not (or no longer) in the feed.
	ErrMessageNotFound = errors.New("message not found")
)

type MessageStore interface {
	// Append assigns an id and a timestamp to the message and appends it to
	// the feed. Once the feed exceeds its history limit the oldest entries
	// are evicted.
	Append(ctx context.Context, input MessageCreateInput) (Message, error)

	// Page returns the [offset, offset+limit) slice of the feed sorted
	// newest first, and whether more entries follow the slice. An empty
	// roomID selects the global feed; a non-empty roomID selects only
	// messages sent to that room.
	Page(ctx context.Context, roomID string, offset, limit int) ([]Message, bool, error)

	// Search returns up to SearchLimit messages whose body contains query
	// case-insensitively, newest first, with the same room filter as Page.
	Search(ctx context.Context, roomID, query string) ([]Message, error)

	// AddReaction appends a reaction record to the message.
	// It returns ErrMessageNotFound if the message id is unknown.
	AddReaction(ctx context.Context, messageID int64, reaction, userID string) error

	// MarkRead records that userID has read the message. It is idempotent
	// and a no-op for unknown message ids.
	MarkRead(ctx context.Context, messageID int64, userID string) error

	// MarkDelivered flags the message as delivered. Idempotent.
	MarkDelivered(ctx context.Context, messageID int64) error

	// Count returns the number of messages currently in the feed.
	Count(ctx context.Context) (int, error)
}
