package service

import (
	"context"
	"strings"
	"time"

	"messenger/internal/domain"
	"messenger/internal/repository"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/logger"
)

const searchLimit = 20

type UserService struct {
	users repository.UserRepository
	log   logger.Logger
}

func NewUserService(users repository.UserRepository, log logger.Logger) *UserService {
	return &UserService{users: users, log: log}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfileInput — все поля опциональны, nil означает «не трогать»
type UpdateProfileInput struct {
	DisplayName *string
	Avatar      *string
	Bio         *string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, apperrors.Validation("display_name must not be empty")
		}
		user.DisplayName = name
	}
	if input.Avatar != nil {
		user.Avatar = *input.Avatar
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Search ищет по имени пользователя и отображаемому имени, без учёта регистра.
func (s *UserService) Search(ctx context.Context, query string) ([]domain.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("query must not be empty")
	}

	users, err := s.users.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}
