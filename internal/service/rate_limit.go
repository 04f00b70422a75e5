package service

import (
	"context"
	"time"

	"messenger/internal/repository"
	"messenger/pkg/logger"
)

type RateLimitService struct {
	repo repository.RateLimitRepository
	log  logger.Logger
}

func NewRateLimitService(repo repository.RateLimitRepository, log logger.Logger) *RateLimitService {
	return &RateLimitService{repo: repo, log: log}
}

func (s *RateLimitService) CheckLimit(ctx context.Context, key string, limit int, windowSeconds int) (bool, error) {
	return s.repo.CheckLimit(ctx, key, limit, time.Duration(windowSeconds)*time.Second)
}

func (s *RateLimitService) Increment(ctx context.Context, key string, windowSeconds int) (int64, error) {
	return s.repo.Increment(ctx, key, time.Duration(windowSeconds)*time.Second)
}
