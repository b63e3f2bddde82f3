package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wicaksn/koperasi-engine/internal/domain"
)

// Pager fetches one page of history strictly older than the (before,
// beforeID) cursor, ordered however the storage likes; MergePage normalizes
// the order afterwards. The cursor is composite because timestamps are not
// unique: a timestamp-only cursor would skip siblings of the boundary message
// that share its created_at.
type Pager interface {
	FetchBefore(ctx context.Context, chatID string, before time.Time, beforeID uuid.UUID, limit int) ([]domain.ChatMessage, error)
}

// Conversation owns the in-memory message sequence for the one selected
// chat. History resolutions, push deliveries, and selection changes race
// against each other; the mutex serializes them and the epoch token discards
// anything that resolves after the selection moved on.
type Conversation struct {
	mu          sync.Mutex
	chatID      string
	epoch       uint64
	messages    []domain.ChatMessage
	canLoadMore bool
	loading     bool

	pager    Pager
	pageSize int
	onNew    func(domain.ChatMessage)
	logger   *zap.Logger
}

func NewConversation(pager Pager, pageSize int, logger *zap.Logger) *Conversation {
	return &Conversation{
		pager:    pager,
		pageSize: pageSize,
		logger:   logger,
	}
}

// OnNewMessage registers the callback fired when a realtime message is
// accepted into the sequence (duplicates do not fire it).
func (c *Conversation) OnNewMessage(fn func(domain.ChatMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNew = fn
}

// Reset switches the active chat. It clears the sequence synchronously and
// bumps the epoch so that any fetch still in flight for the previous chat is
// discarded on arrival instead of leaking into the new view.
func (c *Conversation) Reset(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chatID = chatID
	c.epoch++
	c.messages = nil
	c.canLoadMore = chatID != ""
	c.loading = false
}

// Messages returns a copy of the current ordered sequence.
func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// LoadOlder fetches the page preceding the oldest known message and merges
// it in. Concurrent calls coalesce: at most one fetch is in flight per
// conversation, and a call arriving while one is running returns
// immediately. A short or empty page exhausts pagination.
func (c *Conversation) LoadOlder(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || !c.canLoadMore || c.chatID == "" {
		c.mu.Unlock()
		return nil
	}

	chatID := c.chatID
	epoch := c.epoch
	before := time.Now()
	beforeID := domain.MaxMessageID
	if len(c.messages) > 0 {
		before = c.messages[0].CreatedAt
		beforeID = c.messages[0].ID
	}
	c.loading = true
	c.mu.Unlock()

	page, err := c.pager.FetchBefore(ctx, chatID, before, beforeID, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		// Selection changed while the fetch was in flight. Reset already
		// cleared the loading flag; drop the result without touching state.
		if c.logger != nil {
			c.logger.Debug("discarding stale history page",
				zap.String("chat_id", chatID),
				zap.Uint64("epoch", epoch))
		}
		return nil
	}

	c.loading = false
	if err != nil {
		return err
	}

	c.messages = MergePage(c.messages, page)
	if len(page) < c.pageSize {
		c.canLoadMore = false
	}
	return nil
}

// CanLoadMore reports whether older history may remain.
func (c *Conversation) CanLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canLoadMore
}

// Consume drains a push channel until it closes or the context ends.
// Messages for other chats are dropped before reconciliation; accepted
// messages fire the new-message callback.
func (c *Conversation) Consume(ctx context.Context, pushes <-chan domain.ChatMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pushes:
			if !ok {
				return
			}
			c.deliver(msg)
		}
	}
}

func (c *Conversation) deliver(msg domain.ChatMessage) {
	c.mu.Lock()
	if msg.ChatID != c.chatID {
		c.mu.Unlock()
		return
	}

	merged, appended := AppendRealtime(c.messages, msg)
	c.messages = merged
	onNew := c.onNew
	c.mu.Unlock()

	if appended && onNew != nil {
		onNew(msg)
	}
}
