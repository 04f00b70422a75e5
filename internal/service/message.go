package service

import (
	"context"
	"strings"
	"time"

	"messenger/internal/domain"
	"messenger/internal/realtime"
	"messenger/internal/repository"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxContentLen   = 4096
)

// MessageService — жизненный цикл сообщения: отправка, правка, удаление,
// реакции, статусы, закрепление, пересылка. Каждая мутация сначала пишет,
// затем рассылает событие.
type MessageService struct {
	messages repository.MessageRepository
	chats    repository.ChatRepository
	authz    *AuthzService
	events   EventSink
	log      logger.Logger
}

func NewMessageService(messages repository.MessageRepository, chats repository.ChatRepository, authz *AuthzService, events EventSink, log logger.Logger) *MessageService {
	return &MessageService{
		messages: messages,
		chats:    chats,
		authz:    authz,
		events:   events,
		log:      log,
	}
}

// SendInput — параметры отправки; медиа-поля заполняются по типу
type SendInput struct {
	Content  string
	Type     domain.MessageType
	ReplyTo  string
	MediaURL string
	FileName string
	FileSize int64
	Duration int
}

func (s *MessageService) Send(ctx context.Context, chatID, senderID string, input SendInput) (*domain.Message, error) {
	if input.Type == "" {
		input.Type = domain.MessageTypeText
	}
	if !input.Type.Valid() {
		return nil, apperrors.Validation("unknown message type %q", input.Type)
	}
	content := strings.TrimSpace(input.Content)
	if content == "" && !input.Type.IsMedia() {
		return nil, apperrors.Validation("message content must not be empty")
	}
	if len(content) > maxContentLen {
		return nil, apperrors.Validation("message content too long")
	}
	if input.Type.IsMedia() && input.MediaURL == "" {
		return nil, apperrors.Validation("media message requires media_url")
	}

	chat, err := s.authz.RequireParticipant(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanSendMessage(chat, senderID, input.Type); err != nil {
		return nil, err
	}

	if input.ReplyTo != "" {
		replied, err := s.messages.GetByID(ctx, input.ReplyTo)
		if err != nil {
			return nil, err
		}
		if replied.ChatID != chatID {
			return nil, apperrors.Validation("reply target belongs to another chat")
		}
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Type:      input.Type,
		ReplyTo:   input.ReplyTo,
		MediaURL:  input.MediaURL,
		FileName:  input.FileName,
		FileSize:  input.FileSize,
		Duration:  input.Duration,
		Status:    domain.StatusSent,
		ReadBy:    []string{senderID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	// Сводка для списка чатов обновляется по возможности, сбой не
	// откатывает отправку
	last := &domain.LastMessage{
		MessageID: msg.ID,
		SenderID:  senderID,
		Content:   content,
		Type:      msg.Type,
		SentAt:    now,
	}
	if err := s.chats.SetLastMessage(ctx, chatID, last); err != nil {
		s.log.Warn("Failed to refresh last message", "error", err, "chat_id", chatID)
	}

	s.events.ChatEvent(chatID, realtime.EventNewMessage, msg)
	return msg, nil
}

// List возвращает страницу истории, новые первыми. Удалённые «для меня»
// сообщения не попадают в выдачу.
func (s *MessageService) List(ctx context.Context, chatID, userID string, limit, offset int64) ([]*domain.Message, error) {
	if _, err := s.authz.RequireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	messages, err := s.messages.ListByChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, err
	}

	visible := make([]*domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.HiddenFor(userID) {
			continue
		}
		visible = append(visible, m)
	}
	return visible, nil
}

// Edit правит содержимое; тип и вложения неизменяемы.
func (s *MessageService) Edit(ctx context.Context, chatID, messageID, userID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("message content must not be empty")
	}
	if len(content) > maxContentLen {
		return nil, apperrors.Validation("message content too long")
	}

	chat, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, apperrors.ErrMessageNotFound
	}
	if err := s.authz.CanEditMessage(chat, msg, userID); err != nil {
		return nil, err
	}

	if err := s.messages.EditContent(ctx, messageID, content); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.Edited = true
	msg.UpdatedAt = time.Now().UTC()

	s.events.ChatEvent(chatID, realtime.EventMessageEdited, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"content":    content,
		"edited_by":  userID,
	})
	return msg, nil
}

// DeleteForEveryone заменяет сообщение надгробием для всех участников.
func (s *MessageService) DeleteForEveryone(ctx context.Context, chatID, messageID, userID string) error {
	chat, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return nil
	}
	if err := s.authz.CanDeleteMessage(chat, msg, userID); err != nil {
		return err
	}

	if err := s.messages.MarkDeleted(ctx, messageID); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMessageDeleted, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"for":        "everyone",
	})
	return nil
}

// DeleteForMe скрывает сообщение только для вызывающего. Идемпотентно,
// другие участники события не получают.
func (s *MessageService) DeleteForMe(ctx context.Context, chatID, messageID, userID string) error {
	_, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.HiddenFor(userID) {
		return nil
	}

	if err := s.messages.AddDeletedFor(ctx, messageID, userID); err != nil {
		return err
	}

	s.events.UserEvent(userID, realtime.EventMessageDeleted, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"for":        "me",
	})
	return nil
}

// React переключает реакцию: тот же эмодзи снимает её, другой переносит.
// У пользователя не бывает двух реакций на одном сообщении, событие одно.
func (s *MessageService) React(ctx context.Context, chatID, messageID, userID, emoji string) (*domain.Message, error) {
	if emoji == "" {
		return nil, apperrors.Validation("emoji must not be empty")
	}

	_, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, apperrors.ErrMessageNotFound
	}

	reactions := msg.Reactions
	if reactions == nil {
		reactions = make(map[string][]string)
	}

	current, has := msg.ReactionOf(userID)
	if has {
		reactions[current] = removeID(reactions[current], userID)
		if len(reactions[current]) == 0 {
			delete(reactions, current)
		}
	}
	if !has || current != emoji {
		reactions[emoji] = append(reactions[emoji], userID)
	}

	if err := s.messages.SetReactions(ctx, messageID, reactions); err != nil {
		return nil, err
	}
	msg.Reactions = reactions

	s.events.ChatEvent(chatID, realtime.EventReactionChanged, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"user_id":    userID,
		"reactions":  reactions,
	})
	return msg, nil
}

// MarkRead отмечает сообщение прочитанным. Повтор не порождает события.
func (s *MessageService) MarkRead(ctx context.Context, chatID, messageID, userID string) error {
	_, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID || msg.ReadByUser(userID) {
		return nil
	}

	if err := s.messages.AddReadBy(ctx, messageID, userID, domain.StatusRead); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMessageStatus, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"user_id":    userID,
		"status":     domain.StatusRead,
	})
	return nil
}

// MarkDelivered отмечает доставку на устройство получателя.
func (s *MessageService) MarkDelivered(ctx context.Context, chatID, messageID, userID string) error {
	_, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID || msg.DeliveredToUser(userID) {
		return nil
	}

	// status хранит максимум достигнутого кем-либо: read назад не откатывается
	status := msg.Status
	if status == domain.StatusSent {
		status = domain.StatusDelivered
	}
	if err := s.messages.AddDeliveredTo(ctx, messageID, userID, status); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMessageStatus, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"user_id":    userID,
		"status":     domain.StatusDelivered,
	})
	return nil
}

// Pin закрепляет сообщение; список закреплённых ограничен сверху.
func (s *MessageService) Pin(ctx context.Context, chatID, messageID, userID string) error {
	chat, msg, err := s.loadMessage(ctx, chatID, messageID, userID)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return apperrors.ErrMessageNotFound
	}
	if err := s.authz.CanPinMessage(chat, userID); err != nil {
		return err
	}
	for _, id := range chat.PinnedMessages {
		if id == messageID {
			return nil
		}
	}
	if len(chat.PinnedMessages) >= domain.MaxPinnedMessages {
		return apperrors.Conflict("pinned messages limit reached")
	}

	if err := s.chats.PinMessage(ctx, chatID, messageID); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMessagePinned, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"pinned_by":  userID,
	})
	return nil
}

func (s *MessageService) Unpin(ctx context.Context, chatID, messageID, userID string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if err := s.authz.CanPinMessage(chat, userID); err != nil {
		return err
	}

	if err := s.chats.UnpinMessage(ctx, chatID, messageID); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMessageUnpinned, map[string]any{
		"chat_id":     chatID,
		"message_id":  messageID,
		"unpinned_by": userID,
	})
	return nil
}

// Forward копирует содержимое в другой чат. Реакции и статусы прочтения
// не переносятся; ссылка на источник сохраняется.
func (s *MessageService) Forward(ctx context.Context, sourceChatID, messageID, targetChatID, userID string) (*domain.Message, error) {
	_, src, err := s.loadMessage(ctx, sourceChatID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if src.Deleted || src.HiddenFor(userID) {
		return nil, apperrors.ErrMessageNotFound
	}

	target, err := s.authz.RequireParticipant(ctx, targetChatID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanSendMessage(target, userID, src.Type); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	forwarded := &domain.Message{
		ID:            uuid.New().String(),
		ChatID:        targetChatID,
		SenderID:      userID,
		Content:       src.Content,
		Type:          src.Type,
		ForwardedFrom: src.ID,
		MediaURL:      src.MediaURL,
		FileName:      src.FileName,
		FileSize:      src.FileSize,
		Duration:      src.Duration,
		Status:        domain.StatusSent,
		ReadBy:        []string{userID},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.messages.Create(ctx, forwarded); err != nil {
		return nil, err
	}

	last := &domain.LastMessage{
		MessageID: forwarded.ID,
		SenderID:  userID,
		Content:   forwarded.Content,
		Type:      forwarded.Type,
		SentAt:    now,
	}
	if err := s.chats.SetLastMessage(ctx, targetChatID, last); err != nil {
		s.log.Warn("Failed to refresh last message", "error", err, "chat_id", targetChatID)
	}

	s.events.ChatEvent(targetChatID, realtime.EventNewMessage, forwarded)
	return forwarded, nil
}

// loadMessage — общий вход: участник чата и сообщение из этого чата.
func (s *MessageService) loadMessage(ctx context.Context, chatID, messageID, userID string) (*domain.Chat, *domain.Message, error) {
	chat, err := s.authz.RequireParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.ChatID != chatID {
		return nil, nil, apperrors.ErrMessageNotFound
	}
	return chat, msg, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
