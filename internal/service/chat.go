package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"messenger/internal/domain"
	"messenger/internal/realtime"
	"messenger/internal/repository"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/google/uuid"
)

// ChatService — справочник бесед и всё управление составом участников.
type ChatService struct {
	chats    repository.ChatRepository
	users    repository.UserRepository
	messages repository.MessageRepository
	authz    *AuthzService
	events   EventSink
	log      logger.Logger
}

func NewChatService(chats repository.ChatRepository, users repository.UserRepository, messages repository.MessageRepository, authz *AuthzService, events EventSink, log logger.Logger) *ChatService {
	return &ChatService{
		chats:    chats,
		users:    users,
		messages: messages,
		authz:    authz,
		events:   events,
		log:      log,
	}
}

// ChatView — чат вместе со счётчиком непрочитанного для списка бесед
type ChatView struct {
	*domain.Chat
	UnreadCount int64 `json:"unread_count"`
}

// CreateDirect создаёт личный чат. Требуется дружба без блокировок;
// существующая пара возвращается вместо дубликата.
func (s *ChatService) CreateDirect(ctx context.Context, userID, otherID string) (*domain.Chat, error) {
	if userID == otherID {
		return nil, apperrors.Validation("cannot create a chat with yourself")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}

	if user.HasBlocked(otherID) || other.HasBlocked(userID) {
		return nil, apperrors.Denied(apperrors.ReasonBlocked)
	}
	if !user.IsFriend(otherID) {
		return nil, apperrors.Denied(apperrors.ReasonNotFriends)
	}

	if existing, err := s.chats.FindDirect(ctx, userID, otherID); err == nil && existing != nil {
		return existing, nil
	} else if err != nil && !errors.Is(err, apperrors.ErrChatNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	chat := &domain.Chat{
		ID:        uuid.New().String(),
		Kind:      domain.ChatKindDirect,
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
		Direct: &domain.DirectPayload{
			Members: []domain.ChatMember{
				{UserID: userID, Role: domain.RoleMember, JoinedAt: now},
				{UserID: otherID, Role: domain.RoleMember, JoinedAt: now},
			},
		},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.events.UserEvent(otherID, realtime.EventMembershipChanged, map[string]any{
		"chat_id": chat.ID,
		"action":  "added",
		"user_id": otherID,
	})
	return chat, nil
}

// CreateGroup создаёт группу; создатель становится владельцем.
func (s *ChatService) CreateGroup(ctx context.Context, ownerID, name string, memberIDs []string) (*domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("group name must not be empty")
	}

	now := time.Now().UTC()
	members := []domain.ChatMember{{UserID: ownerID, Role: domain.RoleOwner, JoinedAt: now}}
	for _, id := range memberIDs {
		if id == ownerID {
			continue
		}
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, err
		}
		members = append(members, domain.ChatMember{UserID: id, Role: domain.RoleMember, JoinedAt: now})
	}

	chat := &domain.Chat{
		ID:        uuid.New().String(),
		Kind:      domain.ChatKindGroup,
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
		Group: &domain.GroupPayload{
			Members:            members,
			DefaultPermissions: domain.DefaultMemberPermissions(),
		},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.notifyMembership(chat.ID, "added", memberIDs, ownerID)
	return chat, nil
}

// CreateChannel создаёт канал. Участники из списка становятся подписчиками.
func (s *ChatService) CreateChannel(ctx context.Context, ownerID, name, description string, subscriberIDs []string) (*domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("channel name must not be empty")
	}

	now := time.Now().UTC()
	subscribers := make([]string, 0, len(subscriberIDs))
	for _, id := range subscriberIDs {
		if id == ownerID {
			continue
		}
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, err
		}
		subscribers = append(subscribers, id)
	}

	chat := &domain.Chat{
		ID:          uuid.New().String(),
		Kind:        domain.ChatKindChannel,
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Channel: &domain.ChannelPayload{
			Subscribers: subscribers,
			Admins: []domain.ChatMember{
				{UserID: ownerID, Role: domain.RoleOwner, JoinedAt: now},
			},
		},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.notifyMembership(chat.ID, "added", subscribers, ownerID)
	return chat, nil
}

// List возвращает чаты пользователя со счётчиками непрочитанного,
// отсортированные по последней активности.
func (s *ChatService) List(ctx context.Context, userID string) ([]*ChatView, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]*ChatView, 0, len(chats))
	for _, chat := range chats {
		unread, err := s.messages.CountUnread(ctx, chat.ID, userID)
		if err != nil {
			s.log.Warn("Failed to count unread", "error", err, "chat_id", chat.ID)
			unread = 0
		}
		views = append(views, &ChatView{Chat: chat.Redacted(userID), UnreadCount: unread})
	}
	return views, nil
}

// Get возвращает чат участнику; подписчики канала скрыты от не-админов.
func (s *ChatService) Get(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	chat, err := s.authz.RequireParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return chat.Redacted(userID), nil
}

// AddMembers добавляет участников в группу или подписчиков в канал.
// Забаненные не добавляются.
func (s *ChatService) AddMembers(ctx context.Context, chatID, actorID string, memberIDs []string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if err := s.authz.CanAddMembers(chat, actorID); err != nil {
		return err
	}

	now := time.Now().UTC()
	added := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if chat.IsParticipant(id) {
			continue
		}
		if chat.IsBanned(id) {
			return apperrors.Denied(apperrors.ReasonBanned)
		}
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return err
		}

		if chat.Kind == domain.ChatKindChannel {
			err = s.chats.AddSubscriber(ctx, chatID, id)
		} else {
			err = s.chats.AddMember(ctx, chatID, chat.Kind, domain.ChatMember{
				UserID: id, Role: domain.RoleMember, JoinedAt: now,
			})
		}
		if err != nil {
			return err
		}
		added = append(added, id)
	}

	s.notifyMembership(chatID, "added", added, actorID)
	return nil
}

// RemoveMember исключает участника. Себя исключают через Leave.
func (s *ChatService) RemoveMember(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !chat.IsParticipant(targetID) {
		return apperrors.ErrUserNotFound
	}
	if err := s.authz.CanBanUser(chat, actorID, targetID); err != nil {
		return err
	}

	if err := s.removeParticipant(ctx, chat, targetID); err != nil {
		return err
	}

	s.notifyMembership(chatID, "removed", []string{targetID}, actorID)
	return nil
}

// Leave — добровольный выход. Владелец не покидает свой чат.
func (s *ChatService) Leave(ctx context.Context, chatID, userID string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if chat.OwnerID == userID && chat.Kind != domain.ChatKindDirect {
		return apperrors.Conflict("owner cannot leave the chat")
	}

	if err := s.removeParticipant(ctx, chat, userID); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMembershipChanged, map[string]any{
		"chat_id": chatID,
		"action":  "left",
		"user_id": userID,
	})
	return nil
}

// Join — самостоятельная подписка на канал.
func (s *ChatService) Join(ctx context.Context, chatID, userID string) error {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.Kind != domain.ChatKindChannel {
		return apperrors.Validation("only channels can be joined directly")
	}
	if chat.IsBanned(userID) {
		return apperrors.Denied(apperrors.ReasonBanned)
	}
	if chat.IsParticipant(userID) {
		return nil
	}

	if err := s.chats.AddSubscriber(ctx, chatID, userID); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMembershipChanged, map[string]any{
		"chat_id": chatID,
		"action":  "joined",
		"user_id": userID,
	})
	return nil
}

// Ban исключает и вносит в бан-лист. Оба шага идемпотентны, поэтому
// повтор после частичного сбоя безопасен.
func (s *ChatService) Ban(ctx context.Context, chatID, actorID, targetID, reason string, until *time.Time) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if chat.Kind == domain.ChatKindDirect {
		return apperrors.Validation("cannot ban in a direct chat")
	}
	if err := s.authz.CanBanUser(chat, actorID, targetID); err != nil {
		return err
	}

	if err := s.removeParticipant(ctx, chat, targetID); err != nil {
		return err
	}
	ban := domain.BannedUser{
		UserID:   targetID,
		BannedBy: actorID,
		Reason:   reason,
		BannedAt: time.Now().UTC(),
		Until:    until,
	}
	if err := s.chats.AddBan(ctx, chatID, chat.Kind, ban); err != nil {
		return err
	}

	s.notifyMembership(chatID, "banned", []string{targetID}, actorID)
	return nil
}

// Unban снимает бан; членство не восстанавливается.
func (s *ChatService) Unban(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if err := s.authz.CanBanUser(chat, actorID, targetID); err != nil {
		return err
	}
	return s.chats.RemoveBan(ctx, chatID, chat.Kind, targetID)
}

// PromoteAdmin выдаёт роль админа с указанными правами; пустой набор
// означает набор по умолчанию для вида чата.
func (s *ChatService) PromoteAdmin(ctx context.Context, chatID, actorID, targetID string, rights domain.PermissionSet) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if chat.Kind == domain.ChatKindDirect {
		return apperrors.Validation("direct chats have no admins")
	}
	if err := s.authz.CanPromoteToAdmin(chat, actorID); err != nil {
		return err
	}
	if targetID == chat.OwnerID {
		return apperrors.Denied(apperrors.ReasonTargetIsOwner)
	}
	if chat.Kind == domain.ChatKindGroup && !chat.IsParticipant(targetID) {
		return apperrors.ErrUserNotFound
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}

	if len(rights) == 0 {
		if chat.Kind == domain.ChatKindChannel {
			rights = domain.DefaultChannelAdminPermissions()
		} else {
			rights = domain.DefaultGroupAdminPermissions()
		}
	}

	if err := s.chats.SetAdmin(ctx, chatID, chat.Kind, targetID, rights); err != nil {
		return err
	}
	// Подписчик, ставший админом канала, уходит из списка подписчиков
	if chat.Kind == domain.ChatKindChannel {
		if err := s.chats.RemoveSubscriber(ctx, chatID, targetID); err != nil {
			s.log.Warn("Failed to drop subscriber entry after promotion", "error", err, "chat_id", chatID, "user_id", targetID)
		}
	}

	s.notifyMembership(chatID, "promoted", []string{targetID}, actorID)
	return nil
}

// DemoteAdmin снимает роль; в каналах бывший админ остаётся подписчиком.
func (s *ChatService) DemoteAdmin(ctx context.Context, chatID, actorID, targetID string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if err := s.authz.CanDemoteAdmin(chat, actorID, targetID); err != nil {
		return err
	}
	if chat.Role(targetID) != domain.RoleAdmin {
		return apperrors.Conflict("user is not an admin")
	}

	if err := s.chats.DemoteAdmin(ctx, chatID, chat.Kind, targetID); err != nil {
		return err
	}
	if chat.Kind == domain.ChatKindChannel {
		if err := s.chats.AddSubscriber(ctx, chatID, targetID); err != nil {
			s.log.Warn("Failed to keep demoted admin subscribed", "error", err, "chat_id", chatID, "user_id", targetID)
		}
	}

	s.notifyMembership(chatID, "demoted", []string{targetID}, actorID)
	return nil
}

// UpdateInfo меняет название, описание или аватар чата.
func (s *ChatService) UpdateInfo(ctx context.Context, chatID, actorID string, name, description, avatar *string) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if err := s.authz.CanChangeInfo(chat, actorID); err != nil {
		return err
	}
	if name != nil && strings.TrimSpace(*name) == "" {
		return apperrors.Validation("name must not be empty")
	}

	if err := s.chats.UpdateInfo(ctx, chatID, name, description, avatar); err != nil {
		return err
	}

	s.events.ChatEvent(chatID, realtime.EventMembershipChanged, map[string]any{
		"chat_id": chatID,
		"action":  "info_updated",
		"user_id": actorID,
	})
	return nil
}

// SetDefaultPermissions меняет права обычных участников группы.
func (s *ChatService) SetDefaultPermissions(ctx context.Context, chatID, actorID string, perms domain.MemberPermissions) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if chat.Kind != domain.ChatKindGroup {
		return apperrors.Validation("default permissions apply to groups only")
	}
	if err := s.authz.RequireOwner(chat, actorID); err != nil {
		return err
	}
	return s.chats.SetDefaultPermissions(ctx, chatID, perms)
}

// SetMemberRestrictions накладывает персональные ограничения на участника.
func (s *ChatService) SetMemberRestrictions(ctx context.Context, chatID, actorID, targetID string, restr *domain.MemberRestrictions) error {
	chat, err := s.authz.RequireParticipant(ctx, chatID, actorID)
	if err != nil {
		return err
	}
	if !chat.IsParticipant(targetID) {
		return apperrors.ErrUserNotFound
	}
	if err := s.authz.CanRestrictMember(chat, actorID, targetID); err != nil {
		return err
	}
	return s.chats.SetRestrictions(ctx, chatID, targetID, restr)
}

func (s *ChatService) removeParticipant(ctx context.Context, chat *domain.Chat, userID string) error {
	if chat.Kind == domain.ChatKindChannel {
		if chat.Role(userID) == domain.RoleAdmin {
			return s.chats.RemoveMember(ctx, chat.ID, chat.Kind, userID)
		}
		return s.chats.RemoveSubscriber(ctx, chat.ID, userID)
	}
	return s.chats.RemoveMember(ctx, chat.ID, chat.Kind, userID)
}

// notifyMembership шлёт событие и в комнату, и адресно каждому затронутому:
// исключённый мог уже не состоять в комнате.
func (s *ChatService) notifyMembership(chatID, action string, userIDs []string, actorID string) {
	for _, id := range userIDs {
		data := map[string]any{
			"chat_id":  chatID,
			"action":   action,
			"user_id":  id,
			"actor_id": actorID,
		}
		s.events.ChatEvent(chatID, realtime.EventMembershipChanged, data)
		s.events.UserEvent(id, realtime.EventMembershipChanged, data)
	}
}
