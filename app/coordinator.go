package huddle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/putto11262002/huddle/core"
)

// Event handlers below run one at a time on the event router's dispatch
// goroutine, so every handler observes and commits a consistent view across
// the presence, room, unread and message stores. Outbound fan-out happens
// after the mutation, against the committed state.
//
// Every event other than user_join requires a registered user; events
// dispatched by anonymous connections are dropped without error.

func (app *App) UserJoinHandler(ctx context.Context, e *core.Event) error {
	var username string
	if err := json.Unmarshal(e.Payload, &username); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Var(username, "required"); err != nil {
		app.logger.Debug(fmt.Sprintf("rejecting join with empty username from %s", e.Dispatcher))
		return nil
	}

	user, err := app.presence.Join(e.Dispatcher, username)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateConnection) {
			app.logger.Warn(fmt.Sprintf("duplicate join from %s", e.Dispatcher))
			return nil
		}
		return fmt.Errorf("Join: %w", err)
	}

	app.rooms.Join(user.ID, app.config.Chat.DefaultRoom)

	if _, err := app.messages.Append(ctx, core.MessageCreateInput{
		Sender:    user.Username,
		Body:      fmt.Sprintf("%s joined the chat", user.Username),
		Delivered: true,
		System:    true,
	}); err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	app.eventRouter.Emit(UserListEvent, app.presence.Users())
	app.eventRouter.Emit(UserJoinedEvent, UserJoinedPayload{Username: user.Username, ID: user.ID})
	app.eventRouter.EmitTo(RoomListEvent, app.rooms.Rooms(), user.ID)

	app.logger.Info(fmt.Sprintf("%s joined the chat", user.Username))
	return nil
}

func (app *App) SendMessageHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var payload SendMessagePayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}

	msg, err := app.messages.Append(ctx, core.MessageCreateInput{
		SenderID:  user.ID,
		Sender:    user.Username,
		Body:      payload.Message,
		RoomID:    payload.Room,
		Delivered: true,
	})
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	notification := NewMessageNotificationPayload{
		Message: fmt.Sprintf("%s: %s", user.Username, payload.Message),
		Sender:  user.Username,
	}

	if payload.Room != "" {
		// Unknown rooms have no members, so the message lands in the feed
		// but fans out to nobody.
		members := app.rooms.Members(payload.Room)
		app.eventRouter.EmitTo(ReceiveMessageEvent, msg, members...)
		notification.RoomID = payload.Room
		app.notifyUnread(notification, user.ID, members)
	} else {
		app.eventRouter.Emit(ReceiveMessageEvent, msg)
		app.notifyUnread(notification, user.ID, userIDs(app.presence.Users()))
	}

	app.eventRouter.EmitTo(MessageDeliveredEvent, MessageDeliveredPayload{MessageID: msg.ID}, user.ID)
	return nil
}

func (app *App) CreateRoomHandler(ctx context.Context, e *core.Event) error {
	if _, ok := app.presence.Get(e.Dispatcher); !ok {
		return nil
	}
	var name string
	if err := json.Unmarshal(e.Payload, &name); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Var(name, "required"); err != nil {
		return nil
	}

	id, created := app.rooms.Create(name)
	if !created {
		// duplicate create is idempotent success, nothing to announce
		return nil
	}

	app.eventRouter.Emit(RoomListEvent, app.rooms.Rooms())
	app.eventRouter.Emit(NotificationEvent, NotificationPayload{
		Type:    NotificationRoomCreated,
		Message: fmt.Sprintf("New room created: %s", name),
		RoomID:  id,
	})
	return nil
}

func (app *App) JoinRoomHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var roomID string
	if err := json.Unmarshal(e.Payload, &roomID); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}

	if !app.rooms.Join(user.ID, roomID) {
		// joining an unknown room is a no-op
		return nil
	}

	roomName, _ := app.rooms.Name(roomID)
	app.eventRouter.EmitTo(RoomJoinedEvent, RoomJoinedPayload{RoomID: roomID, RoomName: roomName}, user.ID)

	notification := NotificationPayload{
		Type:    NotificationUserJoinedRoom,
		Message: fmt.Sprintf("%s joined the room", user.Username),
		RoomID:  roomID,
	}
	for _, memberID := range app.rooms.Members(roomID) {
		if memberID == user.ID {
			continue
		}
		app.eventRouter.EmitTo(NotificationEvent, notification, memberID)
	}
	return nil
}

func (app *App) TypingHandler(ctx context.Context, e *core.Event) error {
	if _, ok := app.presence.Get(e.Dispatcher); !ok {
		return nil
	}
	var typing bool
	if err := json.Unmarshal(e.Payload, &typing); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}

	app.eventRouter.Emit(TypingUsersEvent, app.presence.SetTyping(e.Dispatcher, typing))
	return nil
}

func (app *App) PrivateMessageHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var payload PrivateMessagePayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil
	}

	msg, err := app.messages.Append(ctx, core.MessageCreateInput{
		SenderID:    user.ID,
		Sender:      user.Username,
		Body:        payload.Message,
		IsPrivate:   true,
		RecipientID: payload.To,
		Delivered:   true,
	})
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	app.eventRouter.EmitTo(PrivateMessageEvent, msg, payload.To, user.ID)
	app.eventRouter.EmitTo(NewMessageNotificationEvent, NewMessageNotificationPayload{
		Message:   fmt.Sprintf("Private message from %s: %s", user.Username, payload.Message),
		Sender:    user.Username,
		IsPrivate: true,
	}, payload.To)
	app.eventRouter.EmitTo(UnreadCountUpdateEvent, app.unread.Increment(payload.To), payload.To)
	app.eventRouter.EmitTo(MessageDeliveredEvent, MessageDeliveredPayload{MessageID: msg.ID}, user.ID)
	return nil
}

func (app *App) AddReactionHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var payload AddReactionPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil
	}

	err := app.messages.AddReaction(ctx, payload.MessageID, payload.Reaction, user.ID)
	if err != nil && !errors.Is(err, core.ErrMessageNotFound) {
		return fmt.Errorf("AddReaction: %w", err)
	}

	// the reaction is broadcast even when the message has already been
	// evicted from the feed; clients drop reactions for unknown ids
	app.eventRouter.Emit(ReactionAddedEvent, ReactionAddedPayload{
		MessageID: payload.MessageID,
		Reaction:  payload.Reaction,
		UserID:    user.ID,
	})
	return nil
}

func (app *App) MessageReadHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var messageID int64
	if err := json.Unmarshal(e.Payload, &messageID); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}

	if err := app.messages.MarkRead(ctx, messageID, user.ID); err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}

	count := app.unread.Decrement(user.ID)
	app.eventRouter.EmitExcept(MessageReadReceiptEvent,
		ReadReceiptPayload{MessageID: messageID, UserID: user.ID}, user.ID)
	app.eventRouter.EmitTo(UnreadCountUpdateEvent, count, user.ID)
	return nil
}

func (app *App) ShareFileHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var payload ShareFilePayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}

	msg, err := app.messages.Append(ctx, core.MessageCreateInput{
		SenderID:  user.ID,
		Sender:    user.Username,
		IsFile:    true,
		FileType:  payload.Type,
		FileName:  payload.Name,
		FileURL:   payload.URL,
		Delivered: true,
	})
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	app.eventRouter.Emit(ReceiveMessageEvent, msg)
	app.notifyUnread(NewMessageNotificationPayload{
		Message: fmt.Sprintf("%s shared a file: %s", user.Username, payload.Name),
		Sender:  user.Username,
		IsFile:  true,
	}, user.ID, userIDs(app.presence.Users()))
	app.eventRouter.EmitTo(MessageDeliveredEvent, MessageDeliveredPayload{MessageID: msg.ID}, user.ID)
	return nil
}

func (app *App) LoadMessagesHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var payload LoadMessagesPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultPageSize
	}

	messages, hasMore, err := app.messages.Page(ctx, payload.RoomID, payload.Offset, payload.Limit)
	if err != nil {
		return fmt.Errorf("Page: %w", err)
	}
	if messages == nil {
		messages = []core.Message{}
	}

	app.eventRouter.EmitTo(MessagesLoadedEvent,
		MessagesLoadedPayload{Messages: messages, HasMore: hasMore}, user.ID)
	return nil
}

func (app *App) SearchMessagesHandler(ctx context.Context, e *core.Event) error {
	user, ok := app.presence.Get(e.Dispatcher)
	if !ok {
		return nil
	}
	var payload SearchMessagesPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("Unmarshal: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil
	}

	messages, err := app.messages.Search(ctx, payload.RoomID, payload.Query)
	if err != nil {
		return fmt.Errorf("Search: %w", err)
	}
	if messages == nil {
		messages = []core.Message{}
	}

	app.eventRouter.EmitTo(SearchResultsEvent,
		SearchResultsPayload{Messages: messages, Query: payload.Query}, user.ID)
	return nil
}

// notifyUnread sends a new-message notification and an updated unread count
// to every recipient except the sender.
func (app *App) notifyUnread(notification NewMessageNotificationPayload, senderID string, recipientIDs []string) {
	for _, id := range recipientIDs {
		if id == senderID {
			continue
		}
		app.eventRouter.EmitTo(NewMessageNotificationEvent, notification, id)
		app.eventRouter.EmitTo(UnreadCountUpdateEvent, app.unread.Increment(id), id)
	}
}

func userIDs(users []core.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
