package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/repository"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type UserService interface {
	// EnsureUser creates or refreshes the local user for an external identity.
	EnsureUser(ctx context.Context, identity domain.Identity) (*domain.User, error)
	GetMe(ctx context.Context, principal domain.Principal) (*domain.User, error)
	ChangeUserRole(ctx context.Context, principal domain.Principal, userID uuid.UUID, role domain.Role) (*domain.User, error)
	// Promote grants ADMIN to the user matching an external id or email.
	// It is meant for operators bootstrapping the first admin.
	Promote(ctx context.Context, externalIDOrEmail string) (*domain.User, error)
}

type userService struct {
	engine
	userRepo  repository.UserRepository
	audit     AuditService
	publisher notify.Publisher
}

func NewUserService(userRepo repository.UserRepository, audit AuditService, publisher notify.Publisher, opts Options, log logger.Logger) UserService {
	return &userService{
		engine:    newEngine(opts, log),
		userRepo:  userRepo,
		audit:     audit,
		publisher: publisher,
	}
}

func (s *userService) EnsureUser(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	identity.ExternalID = strings.TrimSpace(identity.ExternalID)
	identity.Email = strings.TrimSpace(identity.Email)
	identity.DisplayName = strings.TrimSpace(identity.DisplayName)
	if identity.ExternalID == "" {
		return nil, apperrors.Validation("identity subject is required")
	}
	if identity.DisplayName == "" {
		identity.DisplayName = defaultDisplayName(identity.Email)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.userRepo.Upsert(ctx, identity)
	if err != nil {
		return nil, s.storageError("upsert user", err, "external_id", identity.ExternalID)
	}
	return user, nil
}

func defaultDisplayName(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "user"
}

func (s *userService) GetMe(ctx context.Context, principal domain.Principal) (*domain.User, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Unauthenticated()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.userRepo.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, s.notFoundOr("user", "get user", err, "user_id", principal.UserID)
	}
	return user, nil
}

func (s *userService) ChangeUserRole(ctx context.Context, principal domain.Principal, userID uuid.UUID, role domain.Role) (*domain.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.Validation("role must be USER or ADMIN")
	}
	return s.setRole(ctx, principal, userID, role)
}

func (s *userService) Promote(ctx context.Context, externalIDOrEmail string) (*domain.User, error) {
	key := strings.TrimSpace(externalIDOrEmail)
	if key == "" {
		return nil, apperrors.Validation("external id or email is required")
	}

	lookupCtx, cancel := s.withTimeout(ctx)
	user, err := s.userRepo.GetByExternalID(lookupCtx, key)
	if errors.Is(err, repository.ErrNotFound) && strings.Contains(key, "@") {
		user, err = s.userRepo.GetByEmail(lookupCtx, key)
	}
	cancel()
	if err != nil {
		return nil, s.notFoundOr("user", "find user", err)
	}

	return s.setRole(ctx, domain.Anonymous(), user.ID, domain.RoleAdmin)
}

func (s *userService) setRole(ctx context.Context, actor domain.Principal, userID uuid.UUID, role domain.Role) (*domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.userRepo.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, s.notFoundOr("user", "update user role", err, "user_id", userID)
	}

	s.log.Info("User role changed", "user_id", userID, "role", role)
	record(ctx, s.audit, s.log, actor, nil, domain.EventTypeUserRoleChanged, map[string]any{
		"user_id": userID.String(),
		"role":    string(role),
	})
	s.publisher.Publish(ctx, notify.Event{Topics: []string{notify.TopicAdminUsers}, At: s.now()})

	return user, nil
}
