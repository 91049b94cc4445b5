package huddle

import (
	"context"
	"fmt"

	"github.com/putto11262002/huddle/core"
)

func (app *App) ConnectedHandler(ctx context.Context, e *core.Event) error {
	// the connection stays anonymous until a user_join event arrives
	app.logger.Info(fmt.Sprintf("connection %s established", e.Dispatcher))
	return nil
}

// DisconnectedHandler tears down everything the connection owned: its user,
// room membership, typing flag and unread counter. It is safe to run even
// when the connection never joined.
func (app *App) DisconnectedHandler(ctx context.Context, e *core.Event) error {
	connID := e.Dispatcher

	user, joined := app.presence.Leave(connID)
	app.rooms.LeaveAll(connID)
	app.unread.Reset(connID)

	if joined {
		app.eventRouter.Emit(UserLeftEvent, UserLeftPayload{Username: user.Username, ID: user.ID})
		app.eventRouter.EmitExcept(NotificationEvent, NotificationPayload{
			Type:    NotificationUserLeft,
			Message: fmt.Sprintf("%s left the chat", user.Username),
		}, connID)

		if _, err := app.messages.Append(ctx, core.MessageCreateInput{
			Sender:    user.Username,
			Body:      fmt.Sprintf("%s left the chat", user.Username),
			Delivered: true,
			System:    true,
		}); err != nil {
			return fmt.Errorf("Append: %w", err)
		}
		app.logger.Info(fmt.Sprintf("%s left the chat", user.Username))
	}

	app.eventRouter.Emit(UserListEvent, app.presence.Users())
	app.eventRouter.Emit(TypingUsersEvent, app.presence.TypingUsers())
	app.eventRouter.Emit(RoomListEvent, app.rooms.Rooms())
	return nil
}
