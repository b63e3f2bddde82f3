package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wicaksn/koperasi-engine/internal/domain"
)

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, chat_id, sender_id, body, file_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.SenderID,
		msg.Body,
		msg.FileRef,
		msg.CreatedAt,
	)

	return err
}

// ListBefore pages backwards through a chat's history. The cursor is the
// composite (created_at, id) sort key, so siblings sharing the boundary
// message's timestamp land on the next page instead of being skipped. The
// newest `limit` rows before the cursor are selected, then returned
// oldest-first so callers get an ascending page.
func (r *chatRepository) ListBefore(ctx context.Context, chatID string, before time.Time, beforeID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, chat_id, sender_id, body, file_ref, created_at
		FROM (
			SELECT id, chat_id, sender_id, body, file_ref, created_at
			FROM chat_messages
			WHERE chat_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		) page
		ORDER BY created_at, id
	`

	var messages []domain.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, chatID, before, beforeID, limit); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetByID loads a single message, scoped to its chat so one conversation
// cannot address another's messages by id.
func (r *chatRepository) GetByID(ctx context.Context, chatID string, id uuid.UUID) (*domain.ChatMessage, error) {
	query := `
		SELECT id, chat_id, sender_id, body, file_ref, created_at
		FROM chat_messages
		WHERE chat_id = $1 AND id = $2
	`

	var msg domain.ChatMessage
	if err := r.db.GetContext(ctx, &msg, query, chatID, id); err != nil {
		return nil, err
	}

	return &msg, nil
}
