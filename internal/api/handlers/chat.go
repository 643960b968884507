package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pestofarm/storefront/internal/domain"
	"github.com/pestofarm/storefront/internal/service"
)

// SendChatMessageRequest is the body of POST /v1/chats/:chatId/messages
type SendChatMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatStreamEvent is one websocket frame of the chat stream
type ChatStreamEvent struct {
	Type       string               `json:"type"` // history | messages
	Messages   []domain.ChatMessage `json:"messages"`
	SyncStatus domain.SyncStatus    `json:"syncStatus,omitempty"`
}

const chatWriteTimeout = 10 * time.Second

// HandleListChatMessages handles GET /v1/chats/:chatId/messages
func HandleListChatMessages(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		chatID, ok := int64Param(c, "chatId")
		if !ok {
			return
		}
		history, err := svc.Chats.History(c.Request.Context(), caller, chatID)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

// HandleSendChatMessage handles POST /v1/chats/:chatId/messages
func HandleSendChatMessage(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		chatID, ok := int64Param(c, "chatId")
		if !ok {
			return
		}
		var req SendChatMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		msg, err := svc.Chats.Send(c.Request.Context(), caller, chatID, req.Content)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// HandleChatStream handles GET /v1/chats/:chatId/stream. The socket gets the
// history once and then every new message found by polling the backend.
// Closing the socket stops the polling.
func HandleChatStream(svc *service.Services, allowedOrigins []string, logger *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}

	return func(c *gin.Context) {
		caller, ok := callerOrAbort(c)
		if !ok {
			return
		}
		chatID, ok := int64Param(c, "chatId")
		if !ok {
			return
		}

		// a rejected token is answered before the upgrade
		history, err := svc.Chats.History(c.Request.Context(), caller, chatID)
		if err != nil {
			respondError(c, err, logger)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Debug("Websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// the client only ever closes; reading surfaces that
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func(ev ChatStreamEvent) error {
			if err := conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout)); err != nil {
				return err
			}
			return conn.WriteJSON(ev)
		}

		if err := send(ChatStreamEvent{Type: "history", Messages: history.Messages, SyncStatus: history.SyncStatus}); err != nil {
			return
		}

		err = svc.Chats.RunChatPollLoop(ctx, caller, chatID, svc.Chats.PollInterval(), history.Messages, func(msgs []domain.ChatMessage) error {
			return send(ChatStreamEvent{Type: "messages", Messages: msgs})
		})
		if err != nil {
			logger.Debug("Chat stream closed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
