package handler

import (
	"github.com/gin-gonic/gin"

	"messenger/internal/config"
	"messenger/internal/realtime"
	"messenger/internal/service"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	User      *UserHandler
	Friend    *FriendHandler
	Chat      *ChatHandler
	Message   *MessageHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *realtime.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		User:      NewUserHandler(services.User, log),
		Friend:    NewFriendHandler(services.Friend, log),
		Chat:      NewChatHandler(services.Chat, log),
		Message:   NewMessageHandler(services.Message, log),
		WebSocket: NewWebSocketHandler(hub, log),
	}
}

// respondError — единая точка перевода доменных ошибок в HTTP-ответ
func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if code := apperrors.ReasonCode(err); code != "" {
		body["reason"] = code
	}
	c.JSON(apperrors.HTTPStatusFromError(err), body)
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
