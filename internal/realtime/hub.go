package realtime

import (
	"context"
	"encoding/json"
	"time"

	"messenger/internal/domain"
	"messenger/internal/repository"
	"messenger/pkg/logger"

	"github.com/gorilla/websocket"
)

// TokenValidator проверяет токен рукопожатия и возвращает пользователя.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}

// ChatGate проверяет, что пользователь является участником чата.
type ChatGate interface {
	RequireParticipant(ctx context.Context, chatID, userID string) (*domain.Chat, error)
}

// Hub владеет жизненным циклом подключений: аутентификация, комнаты,
// индикаторы набора и переключение статуса присутствия.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	auth        TokenValidator
	gate        ChatGate
	users       repository.UserRepository
	log         logger.Logger
}

func NewHub(registry *Registry, broadcaster *Broadcaster, auth TokenValidator, gate ChatGate, users repository.UserRepository, log logger.Logger) *Hub {
	return &Hub{
		registry:    registry,
		broadcaster: broadcaster,
		auth:        auth,
		gate:        gate,
		users:       users,
		log:         log,
	}
}

// ServeConn запускает насосы чтения и записи для нового подключения.
// Блокируется до закрытия соединения.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	client := newClient(conn, h)
	go client.writePump()
	client.readPump()
}

func (h *Hub) handleFrame(c *Client, frame *ClientFrame) {
	switch frame.Event {
	case ClientEventAuthenticate:
		h.handleAuthenticate(c, frame.Data)
	case ClientEventJoinChat:
		h.handleJoin(c, frame.Data)
	case ClientEventLeaveChat:
		h.handleLeave(c, frame.Data)
	case ClientEventTyping:
		h.handleTyping(c, frame.Data)
	default:
		c.sendError("unknown event")
	}
}

func (h *Hub) handleAuthenticate(c *Client, data json.RawMessage) {
	if c.authenticated() {
		c.sendError("already authenticated")
		return
	}

	var payload authenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		c.sendError("token required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := h.auth.ValidateToken(ctx, payload.Token)
	if err != nil {
		c.sendError("authentication failed")
		return
	}

	c.userID = user.ID
	first := h.registry.Register(c)

	if first {
		// Сначала запись, затем уведомления: если база недоступна,
		// друзья не увидят ложный онлайн
		if err := h.users.SetPresence(ctx, user.ID, true, time.Now().UTC()); err != nil {
			h.log.Error("Failed to set presence online", "error", err, "user_id", user.ID)
		} else {
			user.IsOnline = true
			h.broadcaster.PresenceChanged(ctx, user)
		}
	}

	c.sendEvent(EventAuthenticated, map[string]string{"user_id": user.ID})
	h.log.Debug("Client authenticated", "user_id", user.ID, "connection_id", c.id)
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	if !c.authenticated() {
		c.sendError("not authenticated")
		return
	}

	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		c.sendError("chat_id required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := h.gate.RequireParticipant(ctx, payload.ChatID, c.userID); err != nil {
		c.sendError("chat not found")
		return
	}

	h.registry.JoinRoom(c, payload.ChatID)

	h.broadcaster.RoomEventExcept(payload.ChatID, c, EventUserJoined, map[string]string{
		"chat_id": payload.ChatID,
		"user_id": c.userID,
	})
}

func (h *Hub) handleLeave(c *Client, data json.RawMessage) {
	if !c.authenticated() {
		c.sendError("not authenticated")
		return
	}

	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		c.sendError("chat_id required")
		return
	}

	typingCleared := h.registry.LeaveRoom(c, payload.ChatID)
	if typingCleared {
		h.broadcastTyping(payload.ChatID, c.userID, false)
	}
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage) {
	if !c.authenticated() {
		c.sendError("not authenticated")
		return
	}

	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		c.sendError("chat_id required")
		return
	}

	if !h.registry.InRoom(c, payload.ChatID) {
		c.sendError("not in chat")
		return
	}

	if h.registry.SetTyping(payload.ChatID, c.userID, payload.IsTyping) {
		h.broadcastTypingExcept(payload.ChatID, c, c.userID, payload.IsTyping)
	}
}

// disconnect вызывается из read pump при закрытии соединения.
func (h *Hub) disconnect(c *Client) {
	if !c.authenticated() {
		return
	}

	last, typingCleared := h.registry.Unregister(c)

	for _, chatID := range typingCleared {
		h.broadcastTyping(chatID, c.userID, false)
	}

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.users.SetPresence(ctx, c.userID, false, time.Now().UTC()); err != nil {
			h.log.Error("Failed to set presence offline", "error", err, "user_id", c.userID)
		}

		user, err := h.users.GetByID(ctx, c.userID)
		if err != nil {
			h.log.Error("Failed to load user for presence broadcast", "error", err, "user_id", c.userID)
			return
		}
		h.broadcaster.PresenceChanged(ctx, user)
	}

	h.log.Debug("Client disconnected", "user_id", c.userID, "connection_id", c.id)
}

func (h *Hub) broadcastTyping(chatID, userID string, isTyping bool) {
	h.broadcaster.RoomEvent(chatID, EventTypingChanged, map[string]any{
		"chat_id":   chatID,
		"user_id":   userID,
		"is_typing": isTyping,
	})
}

func (h *Hub) broadcastTypingExcept(chatID string, except *Client, userID string, isTyping bool) {
	h.broadcaster.RoomEventExcept(chatID, except, EventTypingChanged, map[string]any{
		"chat_id":   chatID,
		"user_id":   userID,
		"is_typing": isTyping,
	})
}
