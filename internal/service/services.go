package service

import (
	"context"
	"errors"
	"time"

	"rental_marketplace/internal/config"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/repository"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type Services struct {
	User      UserService
	Property  PropertyService
	Chat      ChatService
	Audit     AuditService
	RateLimit RateLimitService
}

// Options carries the knobs shared by every engine.
type Options struct {
	// QueryTimeout bounds each operation's store round trips. Zero disables it.
	QueryTimeout time.Duration
	// Now is the clock used for every timestamp the engines write.
	Now func() time.Time
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{QueryTimeout: cfg.Database.QueryTimeout, Now: time.Now}
}

func NewServices(repos *repository.Repositories, publisher notify.Publisher, opts Options, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, opts, log)
	return &Services{
		User:      NewUserService(repos.User, audit, publisher, opts, log),
		Property:  NewPropertyService(repos.Property, audit, publisher, opts, log),
		Chat:      NewChatService(repos.Chat, repos.Property, repos.User, publisher, opts, log),
		Audit:     audit,
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}
}

// engine holds what the services share: timeouts, the clock and the logger.
type engine struct {
	timeout time.Duration
	clock   func() time.Time
	log     logger.Logger
}

func newEngine(opts Options, log logger.Logger) engine {
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	return engine{timeout: opts.QueryTimeout, clock: clock, log: log}
}

func (e engine) now() time.Time {
	return e.clock().UTC()
}

func (e engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// storageError logs the cause and hides it behind a retryable storage error.
func (e engine) storageError(op string, err error, args ...any) error {
	e.log.Error("Store operation failed", append([]any{"op", op, "error", err}, args...)...)
	return apperrors.Storage(op, err)
}

// notFoundOr maps repository.ErrNotFound to a not-found error for what and
// everything else to a storage error.
func (e engine) notFoundOr(what, op string, err error, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(what)
	}
	return e.storageError(op, err, args...)
}
