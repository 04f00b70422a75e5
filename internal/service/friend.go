package service

import (
	"context"
	"errors"
	"time"

	"messenger/internal/domain"
	"messenger/internal/realtime"
	"messenger/internal/repository"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/logger"

	"github.com/google/uuid"
)

// FriendService управляет контактами: заявки, дружба, блокировки.
type FriendService struct {
	users    repository.UserRepository
	requests repository.FriendRequestRepository
	events   EventSink
	log      logger.Logger
}

func NewFriendService(users repository.UserRepository, requests repository.FriendRequestRepository, events EventSink, log logger.Logger) *FriendService {
	return &FriendService{users: users, requests: requests, events: events, log: log}
}

// SendRequest создаёт заявку в друзья. Блокировка в любую сторону и уже
// существующая дружба или встречная заявка делают операцию невозможной.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID string) (*domain.FriendRequest, error) {
	if fromID == toID {
		return nil, apperrors.Validation("cannot send friend request to yourself")
	}

	from, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, err
	}

	if from.HasBlocked(toID) || to.HasBlocked(fromID) {
		return nil, apperrors.Denied(apperrors.ReasonBlocked)
	}
	if from.IsFriend(toID) {
		return nil, apperrors.Conflict("already friends")
	}

	if existing, err := s.requests.FindPendingBetween(ctx, fromID, toID); err == nil && existing != nil {
		return nil, apperrors.Conflict("friend request already pending")
	} else if err != nil && !errors.Is(err, apperrors.ErrRequestNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	request := &domain.FriendRequest{
		ID:         uuid.New().String(),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     domain.FriendRequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}

	s.events.UserEvent(toID, realtime.EventFriendRequestReceived, map[string]any{
		"request": request,
		"from":    from.Summary(),
	})
	return request, nil
}

// SendRequestByUsername — то же самое, но адресат задан ником.
func (s *FriendService) SendRequestByUsername(ctx context.Context, fromID, username string) (*domain.FriendRequest, error) {
	to, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.SendRequest(ctx, fromID, to.ID)
}

// Accept принимает заявку: дружба становится симметричной за один вызов.
func (s *FriendService) Accept(ctx context.Context, requestID, userID string) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ToUserID != userID {
		return apperrors.Denied(apperrors.ReasonNotRecipient)
	}
	if request.Status != domain.FriendRequestPending {
		return apperrors.Conflict("friend request already %s", request.Status)
	}

	if err := s.requests.SetStatus(ctx, requestID, domain.FriendRequestAccepted); err != nil {
		return err
	}
	if err := s.users.AddFriend(ctx, request.FromUserID, request.ToUserID); err != nil {
		return err
	}
	if err := s.users.AddFriend(ctx, request.ToUserID, request.FromUserID); err != nil {
		return err
	}

	s.events.UserEvent(request.FromUserID, realtime.EventFriendRequestAccepted, map[string]string{
		"request_id": requestID,
		"user_id":    userID,
	})
	return nil
}

func (s *FriendService) Reject(ctx context.Context, requestID, userID string) error {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ToUserID != userID {
		return apperrors.Denied(apperrors.ReasonNotRecipient)
	}
	if request.Status != domain.FriendRequestPending {
		return apperrors.Conflict("friend request already %s", request.Status)
	}

	if err := s.requests.SetStatus(ctx, requestID, domain.FriendRequestRejected); err != nil {
		return err
	}

	s.events.UserEvent(request.FromUserID, realtime.EventFriendRequestRejected, map[string]string{
		"request_id": requestID,
		"user_id":    userID,
	})
	return nil
}

func (s *FriendService) ListReceived(ctx context.Context, userID string) ([]*domain.FriendRequest, error) {
	return s.requests.ListReceived(ctx, userID)
}

func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Friends) == 0 {
		return []domain.UserSummary{}, nil
	}

	friends, err := s.users.GetMany(ctx, user.Friends)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.UserSummary, 0, len(friends))
	for _, f := range friends {
		summaries = append(summaries, f.Summary())
	}
	return summaries, nil
}

// Block блокирует пользователя. Дружба снимается с обеих сторон, висящие
// заявки между парой удаляются.
func (s *FriendService) Block(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return apperrors.Validation("cannot block yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return err
	}

	if err := s.users.AddBlocked(ctx, userID, targetID); err != nil {
		return err
	}
	if err := s.users.RemoveFriend(ctx, userID, targetID); err != nil {
		return err
	}
	if err := s.users.RemoveFriend(ctx, targetID, userID); err != nil {
		return err
	}
	return s.requests.DeletePendingBetween(ctx, userID, targetID)
}

// Unblock снимает блокировку. Дружба не восстанавливается.
func (s *FriendService) Unblock(ctx context.Context, userID, targetID string) error {
	return s.users.RemoveBlocked(ctx, userID, targetID)
}

func (s *FriendService) ListBlocked(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.BlockedUsers) == 0 {
		return []domain.UserSummary{}, nil
	}

	blocked, err := s.users.GetMany(ctx, user.BlockedUsers)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.UserSummary, 0, len(blocked))
	for _, b := range blocked {
		summaries = append(summaries, b.Summary())
	}
	return summaries, nil
}

// AreFriends — проверка для гейтинга личных чатов.
func (s *FriendService) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsFriend(otherID), nil
}
