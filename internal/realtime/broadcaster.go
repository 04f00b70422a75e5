package realtime

import (
	"context"
	"encoding/json"

	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/pkg/logger"
)

// Broadcaster рассылает серверные события по комнатам и пользователям.
// Отправка неблокирующая: медленный клиент теряет события, а не тормозит
// остальных.
type Broadcaster struct {
	registry *Registry
	users    repository.UserRepository
	log      logger.Logger
}

func NewBroadcaster(registry *Registry, users repository.UserRepository, log logger.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		users:    users,
		log:      log,
	}
}

func (b *Broadcaster) marshal(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(ServerEvent{Event: event, Data: data})
	if err != nil {
		b.log.Error("Failed to marshal event", "error", err, "event", event)
		return nil, false
	}
	return payload, true
}

// ChatEvent отправляет событие всем подключениям в комнате чата.
func (b *Broadcaster) ChatEvent(chatID, event string, data any) {
	b.RoomEvent(chatID, event, data)
}

// UserEvent отправляет событие на все подключения пользователя.
func (b *Broadcaster) UserEvent(userID, event string, data any) {
	payload, ok := b.marshal(event, data)
	if !ok {
		return
	}
	for _, c := range b.registry.UserClients(userID) {
		if !c.enqueue(payload) {
			b.log.Warn("Dropped event for slow client", "event", event, "user_id", userID)
		}
	}
}

func (b *Broadcaster) RoomEvent(chatID, event string, data any) {
	b.roomEvent(chatID, nil, event, data)
}

// RoomEventExcept — то же, но без эха отправителю.
func (b *Broadcaster) RoomEventExcept(chatID string, except *Client, event string, data any) {
	b.roomEvent(chatID, except, event, data)
}

func (b *Broadcaster) roomEvent(chatID string, except *Client, event string, data any) {
	payload, ok := b.marshal(event, data)
	if !ok {
		return
	}
	for _, c := range b.registry.RoomClients(chatID) {
		if c == except {
			continue
		}
		if !c.enqueue(payload) {
			b.log.Warn("Dropped event for slow client", "event", event, "chat_id", chatID)
		}
	}
}

// PresenceChanged уведомляет о смене статуса только друзей пользователя.
func (b *Broadcaster) PresenceChanged(ctx context.Context, user *domain.User) {
	data := map[string]any{
		"user_id":   user.ID,
		"is_online": user.IsOnline,
	}
	if user.LastSeen != nil {
		data["last_seen"] = user.LastSeen
	}

	for _, friendID := range user.Friends {
		b.UserEvent(friendID, EventPresenceChanged, data)
	}
}
