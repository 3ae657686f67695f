package chat

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/casthouse/streamgate/backend/moderation"
)

// Message is one persisted chat message.
type Message struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Text        string    `json:"message"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Address     string    `json:"ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the Postgres-backed chat message store. It implements
// moderation.MessageStore so the engine can delete messages and the
// transport can record them through RecordMessage.
type Store struct {
	DB *sql.DB
}

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

var _ moderation.MessageStore = (*Store)(nil)

// Append persists one message.
func (s *Store) Append(ctx context.Context, msg moderation.ChatMessage) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chat_messages (id, username, message, fingerprint, ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.DisplayName, msg.Text, msg.Fingerprint, msg.Address, msg.CreatedAt)
	return err
}

// Delete removes a message by ID. Deleting an unknown ID yields zero
// affected rows, not an error.
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recent returns up to limit messages, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, username, message, fingerprint, ip, created_at
		 FROM chat_messages
		 ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.Fingerprint, &m.Address, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
