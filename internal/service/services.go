package service

import (
	"context"

	"messenger/internal/config"
	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/pkg/logger"
)

// EventSink — выход в реальное время. Реализуется realtime.Broadcaster;
// сервисы не знают про websocket напрямую.
type EventSink interface {
	ChatEvent(chatID, event string, data any)
	UserEvent(userID, event string, data any)
	PresenceChanged(ctx context.Context, user *domain.User)
}

type Services struct {
	Auth      *AuthService
	Authz     *AuthzService
	User      *UserService
	Friend    *FriendService
	Chat      *ChatService
	Message   *MessageService
	RateLimit *RateLimitService
}

func NewServices(repos *repository.Repositories, events EventSink, cfg *config.Config, log logger.Logger) *Services {
	authz := NewAuthzService(repos.Chat, log)
	return &Services{
		Auth:      NewAuthService(repos.User, cfg, log),
		Authz:     authz,
		User:      NewUserService(repos.User, log),
		Friend:    NewFriendService(repos.User, repos.FriendRequest, events, log),
		Chat:      NewChatService(repos.Chat, repos.User, repos.Message, authz, events, log),
		Message:   NewMessageService(repos.Message, repos.Chat, authz, events, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}
}
