package service

import (
	"context"

	"messenger/internal/config"
	"messenger/internal/domain"
	"messenger/internal/repository"
	apperrors "messenger/pkg/errors"
	"messenger/pkg/jwt"
	"messenger/pkg/logger"
)

// AuthService проверяет токены доступа. Выпуск учётных записей и паролей
// лежит на внешнем сервисе идентификации, здесь только валидация.
type AuthService struct {
	users repository.UserRepository
	cfg   *config.Config
	log   logger.Logger
}

func NewAuthService(users repository.UserRepository, cfg *config.Config, log logger.Logger) *AuthService {
	return &AuthService{users: users, cfg: cfg, log: log}
}

// ValidateToken разбирает токен и возвращает связанного пользователя.
// Удалённый пользователь с валидным токеном не проходит.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := jwt.ValidateToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return nil, apperrors.ErrNotAuthenticated
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	return user, nil
}

// IssueToken выпускает токен доступа для пользователя.
func (s *AuthService) IssueToken(userID string) (string, error) {
	return jwt.GenerateAccessToken(userID, s.cfg.JWT.Secret, s.cfg.JWT.Issuer, s.cfg.JWT.AccessTTL)
}
