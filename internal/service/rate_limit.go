package service

import (
	"context"
	"fmt"
	"time"

	"rental_marketplace/internal/repository"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type RateLimitService interface {
	// Consume counts one hit against key and returns how many remain in the
	// current window. Exceeding limit yields a rate-limited error.
	Consume(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Consume(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := s.rateLimitRepo.Increment(ctx, key, window)
	if err != nil {
		return 0, apperrors.Storage("rate limit", err)
	}
	if count > int64(limit) {
		return 0, apperrors.New(apperrors.ErrRateLimited, fmt.Sprintf("too many requests, limit is %d per %s", limit, window))
	}
	return limit - int(count), nil
}
