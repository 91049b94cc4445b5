package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DefaultHistoryLimit is the number of messages the feed retains before the
// oldest entries are evicted.
const DefaultHistoryLimit = 1000

// SQLiteMessageStore is a MessageStore backed by a SQLite database. The
// database is expected to be in-memory in normal operation; the feed is a
// process-lifetime log, not durable storage.
type SQLiteMessageStore struct {
	db           *sql.DB
	historyLimit int
}

func NewSQLiteMessageStore(db *sql.DB, historyLimit int) *SQLiteMessageStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &SQLiteMessageStore{
		db:           db,
		historyLimit: historyLimit,
	}
}

func (s *SQLiteMessageStore) Append(ctx context.Context, input MessageCreateInput) (Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	sentAt := time.Now().UTC()

	query := `
		INSERT INTO messages (sender_id, sender, body, sent_at, room_id, is_private,
			recipient_id, is_file, file_type, file_name, file_url, delivered, is_system)
		VALUES (@sender_id, @sender, @body, @sent_at, @room_id, @is_private,
			@recipient_id, @is_file, @file_type, @file_name, @file_url, @delivered, @is_system)`
	res, err := tx.ExecContext(ctx, query,
		sql.Named("sender_id", nullString(input.SenderID)),
		sql.Named("sender", input.Sender),
		sql.Named("body", nullString(input.Body)),
		sql.Named("sent_at", sentAt),
		sql.Named("room_id", nullString(input.RoomID)),
		sql.Named("is_private", input.IsPrivate),
		sql.Named("recipient_id", nullString(input.RecipientID)),
		sql.Named("is_file", input.IsFile),
		sql.Named("file_type", nullString(input.FileType)),
		sql.Named("file_name", nullString(input.FileName)),
		sql.Named("file_url", nullString(input.FileURL)),
		sql.Named("delivered", input.Delivered),
		sql.Named("is_system", input.System),
	)
	if err != nil {
		return Message{}, fmt.Errorf("ExecContext(insert message): %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("LastInsertId: %w", err)
	}

	// Evict everything older than the newest historyLimit entries. The
	// subquery yields NULL while the feed is below the limit, which makes
	// the delete a no-op.
	query = `
		DELETE FROM messages WHERE id <= (
			SELECT id FROM messages ORDER BY id DESC LIMIT 1 OFFSET @limit)`
	if _, err := tx.ExecContext(ctx, query, sql.Named("limit", s.historyLimit)); err != nil {
		return Message{}, fmt.Errorf("ExecContext(evict messages): %w", err)
	}
	query = `DELETE FROM message_reactions WHERE message_id NOT IN (SELECT id FROM messages)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return Message{}, fmt.Errorf("ExecContext(evict reactions): %w", err)
	}
	query = `DELETE FROM message_reads WHERE message_id NOT IN (SELECT id FROM messages)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return Message{}, fmt.Errorf("ExecContext(evict reads): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("Commit: %w", err)
	}

	return Message{
		ID:          id,
		SenderID:    input.SenderID,
		Sender:      input.Sender,
		Body:        input.Body,
		SentAt:      sentAt,
		RoomID:      input.RoomID,
		IsPrivate:   input.IsPrivate,
		RecipientID: input.RecipientID,
		IsFile:      input.IsFile,
		FileType:    input.FileType,
		FileName:    input.FileName,
		FileURL:     input.FileURL,
		Delivered:   input.Delivered,
		System:      input.System,
	}, nil
}

func (s *SQLiteMessageStore) Page(ctx context.Context, roomID string, offset, limit int) ([]Message, bool, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	var total int
	query := `SELECT COUNT(*) FROM messages WHERE (@room = '' OR room_id = @room)`
	if err := s.db.QueryRowContext(ctx, query, sql.Named("room", roomID)).Scan(&total); err != nil {
		return nil, false, fmt.Errorf("QueryRowContext(count): %w", err)
	}

	query = `
		SELECT id, sender_id, sender, body, sent_at, room_id, is_private,
			recipient_id, is_file, file_type, file_name, file_url, delivered, is_system
		FROM messages
		WHERE (@room = '' OR room_id = @room)
		ORDER BY sent_at DESC, id DESC
		LIMIT @limit OFFSET @offset`
	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("room", roomID), sql.Named("limit", limit), sql.Named("offset", offset))
	if err != nil {
		return nil, false, fmt.Errorf("QueryContext(page): %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, false, err
	}
	if err := s.hydrate(ctx, messages); err != nil {
		return nil, false, err
	}

	return messages, offset+limit < total, nil
}

func (s *SQLiteMessageStore) Search(ctx context.Context, roomID, query string) ([]Message, error) {
	q := `
		SELECT id, sender_id, sender, body, sent_at, room_id, is_private,
			recipient_id, is_file, file_type, file_name, file_url, delivered, is_system
		FROM messages
		WHERE (@room = '' OR room_id = @room)
			AND body IS NOT NULL
			AND instr(lower(body), lower(@query)) > 0
		ORDER BY sent_at DESC, id DESC
		LIMIT @limit`
	rows, err := s.db.QueryContext(ctx, q,
		sql.Named("room", roomID), sql.Named("query", query), sql.Named("limit", SearchLimit))
	if err != nil {
		return nil, fmt.Errorf("QueryContext(search): %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *SQLiteMessageStore) AddReaction(ctx context.Context, messageID int64, reaction, userID string) error {
	query := `
		INSERT INTO message_reactions (message_id, reaction, user_id)
		SELECT @message_id, @reaction, @user_id
		WHERE EXISTS (SELECT 1 FROM messages WHERE id = @message_id)`
	res, err := s.db.ExecContext(ctx, query,
		sql.Named("message_id", messageID),
		sql.Named("reaction", reaction),
		sql.Named("user_id", userID))
	if err != nil {
		return fmt.Errorf("ExecContext(insert reaction): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *SQLiteMessageStore) MarkRead(ctx context.Context, messageID int64, userID string) error {
	query := `
		INSERT OR IGNORE INTO message_reads (message_id, user_id)
		SELECT @message_id, @user_id
		WHERE EXISTS (SELECT 1 FROM messages WHERE id = @message_id)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("message_id", messageID), sql.Named("user_id", userID))
	if err != nil {
		return fmt.Errorf("ExecContext(insert read): %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) MarkDelivered(ctx context.Context, messageID int64) error {
	query := `UPDATE messages SET delivered = 1 WHERE id = @message_id`
	if _, err := s.db.ExecContext(ctx, query, sql.Named("message_id", messageID)); err != nil {
		return fmt.Errorf("ExecContext(mark delivered): %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return 0, fmt.Errorf("QueryRowContext(count): %w", err)
	}
	return total, nil
}

// hydrate attaches reactions and read receipts to the given messages.
func (s *SQLiteMessageStore) hydrate(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	index := make(map[int64]*Message, len(messages))
	args := make([]any, 0, len(messages))
	placeholders := make([]string, 0, len(messages))
	for i := range messages {
		index[messages[i].ID] = &messages[i]
		args = append(args, messages[i].ID)
		placeholders = append(placeholders, "?")
	}
	in := strings.Join(placeholders, ", ")

	query := `SELECT message_id, reaction, user_id FROM message_reactions
		WHERE message_id IN (` + in + `) ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("QueryContext(reactions): %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var messageID int64
		var reaction Reaction
		if err := rows.Scan(&messageID, &reaction.Reaction, &reaction.UserID); err != nil {
			return fmt.Errorf("Scan(reaction): %w", err)
		}
		if msg, ok := index[messageID]; ok {
			msg.Reactions = append(msg.Reactions, reaction)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("Rows(reactions): %w", err)
	}

	query = `SELECT message_id, user_id FROM message_reads
		WHERE message_id IN (` + in + `) ORDER BY user_id ASC`
	rows, err = s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("QueryContext(reads): %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var messageID int64
		var userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return fmt.Errorf("Scan(read): %w", err)
		}
		if msg, ok := index[messageID]; ok {
			msg.ReadBy = append(msg.ReadBy, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("Rows(reads): %w", err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		var senderID, body, roomID, recipientID, fileType, fileName, fileURL sql.NullString
		if err := rows.Scan(&msg.ID, &senderID, &msg.Sender, &body, &msg.SentAt,
			&roomID, &msg.IsPrivate, &recipientID, &msg.IsFile,
			&fileType, &fileName, &fileURL, &msg.Delivered, &msg.System); err != nil {
			return nil, fmt.Errorf("Scan(message): %w", err)
		}
		msg.SenderID = senderID.String
		msg.Body = body.String
		msg.RoomID = roomID.String
		msg.RecipientID = recipientID.String
		msg.FileType = fileType.String
		msg.FileName = fileName.String
		msg.FileURL = fileURL.String
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Rows(messages): %w", err)
	}
	return messages, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
