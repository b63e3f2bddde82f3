package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageID is the keyset cursor for "newest page": every (created_at, id)
// pair sorts strictly below (now, MaxMessageID).
var MaxMessageID = uuid.UUID{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// ChatMessage is one message in a conversation. The same logical message can
// arrive twice: once from the paginated history fetch and once from the
// realtime push channel. ID is the dedupe key.
type ChatMessage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ChatID    string    `json:"chat_id" db:"chat_id"`
	SenderID  string    `json:"sender_id" db:"sender_id"`
	Body      string    `json:"body" db:"body"`
	FileRef   *string   `json:"file_ref,omitempty" db:"file_ref"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SendMessageRequest struct {
	SenderID string  `json:"sender_id" validate:"required"`
	Body     string  `json:"body"`
	FileRef  *string `json:"file_ref,omitempty"`
}

type MessagePageResponse struct {
	ChatID   string         `json:"chat_id"`
	Messages []*ChatMessage `json:"messages"`
	HasMore  bool           `json:"has_more"`
}
