package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invigil/proctor-backend/internal/model"
)

// ChatRepository is the PostgreSQL implementation of service.ChatStore.
// Messages live in their own append-only table; the block flag lives on the
// attempt row it guards.
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// Append inserts one chat message and fills in its id and timestamp.
func (r *ChatRepository) Append(ctx context.Context, m *model.ChatMessage) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempt_messages (attempt_id, sender, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, sent_at, read`,
		m.AttemptID, m.Sender, m.Message,
	).Scan(&m.ID, &m.SentAt, &m.Read)
}

// ListByAttempt returns the full ordered log. A non-empty markReadFor flags
// the opposite party's messages as read first, so the returned log already
// reflects the viewer having seen it.
func (r *ChatRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID, markReadFor model.ChatSender) ([]model.ChatMessage, error) {
	if markReadFor != "" {
		other := model.ChatSenderAdmin
		if markReadFor == model.ChatSenderAdmin {
			other = model.ChatSenderStudent
		}
		if _, err := r.pool.Exec(ctx,
			`UPDATE attempt_messages SET read = TRUE
			 WHERE attempt_id = $1 AND sender = $2 AND NOT read`,
			attemptID, other,
		); err != nil {
			return nil, err
		}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, sender, message, sent_at, read
		 FROM attempt_messages
		 WHERE attempt_id = $1
		 ORDER BY sent_at ASC, id ASC`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.AttemptID, &m.Sender, &m.Message, &m.SentAt, &m.Read); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountUnread counts unread messages sent by the given party.
func (r *ChatRepository) CountUnread(ctx context.Context, attemptID uuid.UUID, sender model.ChatSender) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempt_messages
		 WHERE attempt_id = $1 AND sender = $2 AND NOT read`,
		attemptID, sender,
	).Scan(&count)
	return count, err
}

// SetBlocked toggles the chat gate on the attempt row.
func (r *ChatRepository) SetBlocked(ctx context.Context, attemptID uuid.UUID, blocked bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET chat_blocked = $2, updated_at = NOW() WHERE id = $1`,
		attemptID, blocked,
	)
	return err
}
