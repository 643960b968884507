package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/config"
	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/repository"
	"github.com/pestofarm/storefront/pkg/errors"
)

const defaultChatHistoryLimit = 50

// ChatHistory is the mirrored tail of one chat
type ChatHistory struct {
	ChatID     int64                `json:"chatId"`
	Messages   []domain.ChatMessage `json:"messages"`
	SyncStatus domain.SyncStatus    `json:"syncStatus"`
}

// ChatService reads and sends customer/scientist chat messages. Only the
// last historyLimit messages are mirrored; when the store reports its quota
// is exceeded the history is cut to each of quotaFallbacks in turn.
type ChatService struct {
	backend        ChatBackend
	mirror         repository.SnapshotStore
	historyLimit   int
	quotaFallbacks []int
	pollInterval   time.Duration
	logger         *zap.Logger
}

func NewChatService(chatBackend ChatBackend, mirror repository.SnapshotStore, cfg config.ChatConfig, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}
	fallbacks := cfg.QuotaFallbacks
	if len(fallbacks) == 0 {
		fallbacks = []int{20, 10}
	}
	return &ChatService{
		backend:        chatBackend,
		mirror:         mirror,
		historyLimit:   limit,
		quotaFallbacks: fallbacks,
		pollInterval:   cfg.PollInterval,
		logger:         logger,
	}
}

// PollInterval is how often stream clients are refreshed
func (s *ChatService) PollInterval() time.Duration {
	if s.pollInterval <= 0 {
		return defaultPollInterval
	}
	return s.pollInterval
}

// History returns the chat from the backend, or the mirrored tail. A
// rejected token is returned as an error.
func (s *ChatService) History(ctx context.Context, caller Caller, chatID int64) (ChatHistory, error) {
	if caller.Token != "" {
		msgs, err := s.fetch(ctx, caller, chatID)
		if err == nil {
			if msgs == nil {
				msgs = []domain.ChatMessage{}
			}
			return ChatHistory{ChatID: chatID, Messages: msgs, SyncStatus: domain.SyncStatusSynced}, nil
		}
		if authRejected(err) {
			return ChatHistory{}, err
		}
		s.logger.Warn("Failed to load chat from backend, falling back to mirror",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}

	var h ChatHistory
	found, err := repository.ReadJSON(ctx, s.mirror, repository.ChatKey(caller.Email, chatID), &h)
	if err != nil {
		s.logger.Warn("Failed to read chat mirror", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	if !found || err != nil {
		h = ChatHistory{ChatID: chatID}
	}
	if h.Messages == nil {
		h.Messages = []domain.ChatMessage{}
	}
	h.SyncStatus = domain.SyncStatusLocalOnly
	return h, nil
}

// fetch loads the chat from the backend and mirrors its tail
func (s *ChatService) fetch(ctx context.Context, caller Caller, chatID int64) ([]domain.ChatMessage, error) {
	msgs, err := s.backend.ListChatMessages(ctx, caller.Token, chatID)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = derivedMessageID(msgs[i])
		}
		msgs[i].SyncStatus = domain.SyncStatusSynced
	}
	s.saveHistory(ctx, caller.Email, chatID, msgs)
	return msgs, nil
}

// derivedMessageID gives id-less messages a stable id so polling can de-duplicate them
func derivedMessageID(m domain.ChatMessage) string {
	name := fmt.Sprintf("%d|%s|%d|%s|%s", m.ChatID, m.Timestamp.UTC().Format("2006-01-02T15:04:05.000"), m.SenderID, m.SenderRole, m.Content)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Send posts a message. There is no offline path: without the backend the
// message is not sent.
func (s *ChatService) Send(ctx context.Context, caller Caller, chatID int64, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &errors.ErrValidation{
			Message: "message content is required",
			Fields:  map[string]string{"content": "required"},
		}
	}
	if caller.Token == "" {
		return nil, &errors.ErrUnauthorized{Message: "sending chat messages requires a backend token"}
	}

	sent, err := s.backend.SendChatMessage(ctx, caller.Token, chatID, content)
	if err != nil {
		s.logger.Warn("Failed to send chat message", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, err
	}
	if sent.ID == "" {
		sent.ID = derivedMessageID(*sent)
	}
	sent.SyncStatus = domain.SyncStatusSynced

	if _, err := s.fetch(ctx, caller, chatID); err != nil {
		s.logger.Debug("Chat re-fetch after send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent, nil
}

// saveHistory mirrors the newest messages, shrinking on quota errors
func (s *ChatService) saveHistory(ctx context.Context, email string, chatID int64, msgs []domain.ChatMessage) {
	key := repository.ChatKey(email, chatID)
	limits := append([]int{s.historyLimit}, s.quotaFallbacks...)

	for _, limit := range limits {
		err := repository.WriteJSON(ctx, s.mirror, key, ChatHistory{
			ChatID:     chatID,
			Messages:   lastN(msgs, limit),
			SyncStatus: domain.SyncStatusSynced,
		})
		if err == nil {
			return
		}
		if _, ok := err.(*errors.ErrQuotaExceeded); !ok {
			s.logger.Warn("Failed to mirror chat", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		s.logger.Warn("Chat mirror over quota, trimming history",
			zap.Int64("chat_id", chatID), zap.Int("limit", limit))
	}
	s.logger.Error("Chat history does not fit the mirror even after trimming", zap.Int64("chat_id", chatID))
}

func lastN(msgs []domain.ChatMessage, n int) []domain.ChatMessage {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
