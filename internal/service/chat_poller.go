package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
)

const defaultPollInterval = 5 * time.Second

// ChatSink receives messages not delivered before. Returning an error stops the poll loop.
type ChatSink func(msgs []domain.ChatMessage) error

// RunChatPollOnce fetches the chat and returns the messages whose ids are not
// in seen, marking them seen
func (s *ChatService) RunChatPollOnce(ctx context.Context, caller Caller, chatID int64, seen map[string]bool) ([]domain.ChatMessage, error) {
	msgs, err := s.fetch(ctx, caller, chatID)
	if err != nil {
		return nil, err
	}
	var fresh []domain.ChatMessage
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		fresh = append(fresh, m)
	}
	return fresh, nil
}

// RunChatPollLoop polls every interval until ctx is done or sink fails.
// delivered seeds the de-duplication set. A tick is skipped while the
// previous fetch is still running. Call from a goroutine.
func (s *ChatService) RunChatPollLoop(
	ctx context.Context,
	caller Caller,
	chatID int64,
	interval time.Duration,
	delivered []domain.ChatMessage,
	sink ChatSink,
) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	seen := make(map[string]bool, len(delivered))
	for _, m := range delivered {
		seen[m.ID] = true
	}

	var (
		inFlight sync.Mutex
		wg       sync.WaitGroup
		errCh    = make(chan error, 1)
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			if !inFlight.TryLock() {
				s.logger.Debug("Chat poll skipped, previous fetch still running", zap.Int64("chat_id", chatID))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer inFlight.Unlock()

				fresh, err := s.RunChatPollOnce(ctx, caller, chatID, seen)
				if err != nil {
					s.logger.Warn("Chat poll failed", zap.Int64("chat_id", chatID), zap.Error(err))
					return
				}
				if len(fresh) == 0 {
					return
				}
				if err := sink(fresh); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}()
		}
	}
}
