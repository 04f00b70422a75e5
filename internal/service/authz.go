package service

import (
	"context"
	"time"

	"messenger/internal/domain"
	"messenger/internal/repository"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/logger"
)

// AuthzService — единая точка проверки прав. Порядок всегда один:
// существование чата, членство, бан, роль, персональные ограничения,
// значения по умолчанию.
type AuthzService struct {
	chats repository.ChatRepository
	log   logger.Logger
}

func NewAuthzService(chats repository.ChatRepository, log logger.Logger) *AuthzService {
	return &AuthzService{chats: chats, log: log}
}

// RequireParticipant загружает чат и проверяет членство. Не-участник
// получает тот же ответ, что и для несуществующего чата: сам факт
// существования беседы не раскрывается посторонним. Забаненный —
// исключение: он уже знает о чате, поэтому получает честный отказ.
func (s *AuthzService) RequireParticipant(ctx context.Context, chatID, userID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(userID) {
		if chat.IsBanned(userID) {
			return nil, apperrors.Denied(apperrors.ReasonBanned)
		}
		return nil, apperrors.ErrChatNotFound
	}
	return chat, nil
}

// CanSendMessage решает, может ли участник отправить сообщение данного типа.
func (s *AuthzService) CanSendMessage(chat *domain.Chat, userID string, msgType domain.MessageType) error {
	if chat.IsBanned(userID) {
		return apperrors.Denied(apperrors.ReasonBanned)
	}

	switch chat.Kind {
	case domain.ChatKindDirect:
		return nil

	case domain.ChatKindChannel:
		role := chat.Role(userID)
		if role == domain.RoleOwner {
			return nil
		}
		if role == domain.RoleAdmin {
			member := chat.Member(userID)
			if member != nil && member.AdminRights.Has(domain.CapPost) {
				return nil
			}
			return apperrors.MissingPermission(string(domain.CapPost))
		}
		if chat.Channel != nil && chat.Channel.AllowMemberPosts {
			return nil
		}
		return apperrors.Denied(apperrors.ReasonNotAdmin)

	default: // группа
		role := chat.Role(userID)
		if role == domain.RoleOwner || role == domain.RoleAdmin {
			return nil
		}

		member := chat.Member(userID)
		defaults := domain.DefaultMemberPermissions()
		if chat.Group != nil {
			defaults = chat.Group.DefaultPermissions
		}

		canSend := defaults.CanSendMessages
		canMedia := defaults.CanSendMedia
		if member != nil && member.Restrictions != nil {
			if member.Restrictions.CanSendMessages != nil {
				canSend = *member.Restrictions.CanSendMessages
			}
			if member.Restrictions.CanSendMedia != nil {
				canMedia = *member.Restrictions.CanSendMedia
			}
		}

		if !canSend {
			return apperrors.Denied("Restricted")
		}
		if msgType.IsMedia() && !canMedia {
			return apperrors.Denied("MediaRestricted")
		}
		return nil
	}
}

// CanEditMessage: автор правит своё в пределах окна, в каналах админ с
// правом редактирования правит посты без ограничения по времени.
func (s *AuthzService) CanEditMessage(chat *domain.Chat, msg *domain.Message, userID string) error {
	if chat.Kind == domain.ChatKindChannel {
		if chat.Role(userID) == domain.RoleOwner {
			return nil
		}
		member := chat.Member(userID)
		if member != nil && member.Role == domain.RoleAdmin && member.AdminRights.Has(domain.CapEditMessages) {
			return nil
		}
	}

	if msg.SenderID != userID {
		return apperrors.Denied(apperrors.ReasonNotAuthor)
	}
	if time.Since(msg.CreatedAt) > domain.EditWindow {
		return apperrors.Denied(apperrors.ReasonTooOldToEdit)
	}
	return nil
}

// CanDeleteMessage — удаление для всех. В личных и групповых чатах
// удаляет только автор, в каналах ещё и админ с правом удаления.
func (s *AuthzService) CanDeleteMessage(chat *domain.Chat, msg *domain.Message, userID string) error {
	if msg.SenderID == userID {
		return nil
	}
	if chat.Kind == domain.ChatKindChannel {
		return s.requireCapability(chat, userID, domain.CapDeleteMessages)
	}
	return apperrors.Denied(apperrors.ReasonNotAuthor)
}

// CanPinMessage: в группах закрепляют админы с правом либо участники,
// если это разрешено настройками чата; в каналах только админы.
func (s *AuthzService) CanPinMessage(chat *domain.Chat, userID string) error {
	switch chat.Kind {
	case domain.ChatKindDirect:
		return nil
	case domain.ChatKindGroup:
		role := chat.Role(userID)
		if role == domain.RoleOwner {
			return nil
		}
		if role == domain.RoleAdmin {
			member := chat.Member(userID)
			if member != nil && member.AdminRights.Has(domain.CapPinMessages) {
				return nil
			}
			return apperrors.MissingPermission(string(domain.CapPinMessages))
		}
		if chat.Group != nil && chat.Group.DefaultPermissions.CanPinMessages {
			return nil
		}
		return apperrors.Denied(apperrors.ReasonNotAdmin)
	default:
		return s.requireCapability(chat, userID, domain.CapPinMessages)
	}
}

// CanChangeInfo — смена названия, описания, аватара.
func (s *AuthzService) CanChangeInfo(chat *domain.Chat, userID string) error {
	if chat.Kind == domain.ChatKindDirect {
		return apperrors.Denied(apperrors.ReasonNotAdmin)
	}
	return s.requireCapability(chat, userID, domain.CapChangeInfo)
}

// CanBanUser проверяет и право, и иерархию: владелец неприкасаем,
// админ не действует против админа.
func (s *AuthzService) CanBanUser(chat *domain.Chat, actorID, targetID string) error {
	if err := s.requireCapability(chat, actorID, domain.CapBanUsers); err != nil {
		return err
	}
	return s.checkHierarchy(chat, actorID, targetID)
}

// CanRestrictMember — персональные ограничения в группах.
func (s *AuthzService) CanRestrictMember(chat *domain.Chat, actorID, targetID string) error {
	if chat.Kind != domain.ChatKindGroup {
		return apperrors.Denied(apperrors.ReasonNotAdmin)
	}
	if err := s.requireCapability(chat, actorID, domain.CapRestrictMembers); err != nil {
		return err
	}
	return s.checkHierarchy(chat, actorID, targetID)
}

// CanPromoteToAdmin — назначение админов: владелец либо админ с правом.
func (s *AuthzService) CanPromoteToAdmin(chat *domain.Chat, actorID string) error {
	return s.requireCapability(chat, actorID, domain.CapAddAdmins)
}

// CanDemoteAdmin — снятие роли. Цель здесь всегда админ, поэтому
// сверх права действует иерархия: не-владелец админа не трогает.
func (s *AuthzService) CanDemoteAdmin(chat *domain.Chat, actorID, targetID string) error {
	if err := s.requireCapability(chat, actorID, domain.CapAddAdmins); err != nil {
		return err
	}
	return s.checkHierarchy(chat, actorID, targetID)
}

// CanAddMembers: для групп у обычных участников действует настройка чата.
func (s *AuthzService) CanAddMembers(chat *domain.Chat, userID string) error {
	switch chat.Kind {
	case domain.ChatKindDirect:
		return apperrors.Denied(apperrors.ReasonNotAdmin)
	case domain.ChatKindGroup:
		role := chat.Role(userID)
		if role == domain.RoleOwner {
			return nil
		}
		if role == domain.RoleAdmin {
			member := chat.Member(userID)
			if member != nil && member.AdminRights.Has(domain.CapInviteUsers) {
				return nil
			}
			return apperrors.MissingPermission(string(domain.CapInviteUsers))
		}
		if chat.Group != nil && chat.Group.DefaultPermissions.CanInviteUsers {
			return nil
		}
		return apperrors.Denied(apperrors.ReasonNotAdmin)
	default:
		return s.requireCapability(chat, userID, domain.CapInviteUsers)
	}
}

// RequireOwner — операции, доступные только владельцу.
func (s *AuthzService) RequireOwner(chat *domain.Chat, userID string) error {
	if chat.OwnerID != userID {
		return apperrors.Denied(apperrors.ReasonNotOwner)
	}
	return nil
}

func (s *AuthzService) requireCapability(chat *domain.Chat, userID string, capability domain.Capability) error {
	role := chat.Role(userID)
	if role == domain.RoleOwner {
		return nil
	}
	if role != domain.RoleAdmin {
		return apperrors.Denied(apperrors.ReasonNotAdmin)
	}
	member := chat.Member(userID)
	if member == nil || !member.AdminRights.Has(capability) {
		return apperrors.MissingPermission(string(capability))
	}
	return nil
}

func (s *AuthzService) checkHierarchy(chat *domain.Chat, actorID, targetID string) error {
	if targetID == chat.OwnerID {
		return apperrors.Denied(apperrors.ReasonTargetIsOwner)
	}
	// Действия между админами разрешены только владельцу
	if chat.Role(targetID) == domain.RoleAdmin && actorID != chat.OwnerID {
		return apperrors.Denied(apperrors.ReasonTargetIsAdmin)
	}
	return nil
}
