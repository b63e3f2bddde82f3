package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wicaksn/koperasi-engine/internal/chat"
	"github.com/wicaksn/koperasi-engine/internal/config"
	"github.com/wicaksn/koperasi-engine/internal/domain"
	"github.com/wicaksn/koperasi-engine/internal/repository"
	customError "github.com/wicaksn/koperasi-engine/pkg/errors"
)

var _ chat.Pager = (*ChatService)(nil)

// ChatService persists conversation history and relays realtime pushes over
// redis pub/sub. It also implements chat.Pager, so a Conversation can page
// history straight through it.
type ChatService struct {
	chatRepo repository.ChatRepository
	redis    *redis.Client
	config   *config.Config
	logger   *zap.Logger
}

func NewChatService(
	chatRepo repository.ChatRepository,
	redisClient *redis.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		redis:    redisClient,
		config:   cfg,
		logger:   logger,
	}
}

// History returns one ascending page of messages older than the
// (before, beforeID) cursor. HasMore is true when the page is full, meaning
// older history may remain.
func (s *ChatService) History(ctx context.Context, chatID string, before time.Time, beforeID uuid.UUID, limit int) (*domain.MessagePageResponse, error) {
	if limit <= 0 || limit > s.config.Chat.PageSize {
		limit = s.config.Chat.PageSize
	}

	messages, err := s.chatRepo.ListBefore(ctx, chatID, before, beforeID, limit)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	page := make([]*domain.ChatMessage, 0, len(messages))
	for i := range messages {
		page = append(page, &messages[i])
	}

	return &domain.MessagePageResponse{
		ChatID:   chatID,
		Messages: page,
		HasMore:  len(messages) == limit,
	}, nil
}

// FetchBefore implements chat.Pager.
func (s *ChatService) FetchBefore(ctx context.Context, chatID string, before time.Time, beforeID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	messages, err := s.chatRepo.ListBefore(ctx, chatID, before, beforeID, limit)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return messages, nil
}

// GetMessage loads one message by id within a chat.
func (s *ChatService) GetMessage(ctx context.Context, chatID string, id uuid.UUID) (*domain.ChatMessage, error) {
	msg, err := s.chatRepo.GetByID(ctx, chatID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapChatMessageNotFound(chatID, id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return msg, nil
}

// Send persists a message and publishes it on the chat's push channel.
// A failed publish is logged but does not fail the send: subscribers pick
// the message up from history on their next page fetch.
func (s *ChatService) Send(ctx context.Context, chatID string, request *domain.SendMessageRequest) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  request.SenderID,
		Body:      request.Body,
		FileRef:   request.FileRef,
		CreatedAt: time.Now(),
	}

	if err := s.chatRepo.Insert(ctx, msg); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	if err := s.redis.Publish(ctx, s.channel(chatID), payload).Err(); err != nil {
		s.logger.Warn("failed to publish chat message",
			zap.String("chat_id", chatID),
			zap.String("message_id", msg.ID.String()),
			zap.Error(err))
	}

	return msg, nil
}

// Subscribe opens the push channel for one chat. The returned channel closes
// when the context ends or the subscription drops; malformed payloads are
// logged and skipped.
func (s *ChatService) Subscribe(ctx context.Context, chatID string) <-chan domain.ChatMessage {
	sub := s.redis.Subscribe(ctx, s.channel(chatID))
	out := make(chan domain.ChatMessage, s.config.Chat.PushBufferSize)

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}

				var msg domain.ChatMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					s.logger.Warn("dropping malformed push payload",
						zap.String("chat_id", chatID), zap.Error(err))
					continue
				}

				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (s *ChatService) channel(chatID string) string {
	return s.config.Chat.ChannelPrefix + chatID
}
