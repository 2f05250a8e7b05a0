package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"rental_marketplace/pkg/logger"
)

type Repositories struct {
	User      UserRepository
	Property  PropertyRepository
	Chat      ChatRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db, log),
		Property:  NewPropertyRepository(db, log),
		Chat:      NewChatRepository(db, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}
}
