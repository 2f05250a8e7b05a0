package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/observability/metrics"
	"rental_marketplace/internal/repository"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type PropertyService interface {
	Create(ctx context.Context, principal domain.Principal, input domain.PropertyInput) (*domain.Property, error)
	// GetByID hides non-LIVE listings from everyone but the owner and admins.
	GetByID(ctx context.Context, id uuid.UUID, principal domain.Principal) (*domain.Property, error)
	ListLive(ctx context.Context, filter domain.LiveFilter) ([]*domain.Property, error)
	ListMine(ctx context.Context, principal domain.Principal) ([]*domain.Property, error)
	ListForAdmin(ctx context.Context, principal domain.Principal, status *domain.PropertyStatus) ([]*domain.Property, error)
	QueueSummary(ctx context.Context, principal domain.Principal) (domain.QueueSummary, error)
	AssignVerifier(ctx context.Context, principal domain.Principal, id uuid.UUID, verifierName string, estimatedDays *int) (*domain.Property, error)
	Decide(ctx context.Context, principal domain.Principal, id uuid.UUID, decision domain.Decision) (*domain.Property, error)
	Update(ctx context.Context, principal domain.Principal, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error)
	Delete(ctx context.Context, principal domain.Principal, id uuid.UUID) error
}

type propertyService struct {
	engine
	propertyRepo repository.PropertyRepository
	audit        AuditService
	publisher    notify.Publisher
}

func NewPropertyService(propertyRepo repository.PropertyRepository, audit AuditService, publisher notify.Publisher, opts Options, log logger.Logger) PropertyService {
	return &propertyService{
		engine:       newEngine(opts, log),
		propertyRepo: propertyRepo,
		audit:        audit,
		publisher:    publisher,
	}
}

func requireAdmin(principal domain.Principal) error {
	if !principal.IsAdmin() {
		return apperrors.Authorization("admin role required")
	}
	return nil
}

func (s *propertyService) signal(ctx context.Context, topics ...string) {
	s.publisher.Publish(ctx, notify.Event{Topics: topics, At: s.now()})
}

func (s *propertyService) Create(ctx context.Context, principal domain.Principal, input domain.PropertyInput) (*domain.Property, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Authorization("sign in to list a property")
	}
	input, err := input.Validate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	property := &domain.Property{
		ID:             uuid.New(),
		OwnerID:        principal.UserID,
		Title:          input.Title,
		Description:    input.Description,
		Address:        input.Address,
		LocationLat:    input.LocationLat,
		LocationLng:    input.LocationLng,
		Rent:           input.Rent,
		PropertyType:   input.PropertyType,
		Amenities:      input.Amenities,
		OwnerImages:    input.OwnerImages,
		VerifiedImages: []string{},
		OwnerContact:   input.OwnerContact,
		Status:         domain.StatusPendingAdminReview,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.propertyRepo.Create(ctx, property); err != nil {
		return nil, s.storageError("create property", err, "owner_id", principal.UserID)
	}

	s.log.Info("Property submitted", "property_id", property.ID, "owner_id", property.OwnerID)
	metrics.ObserveTransition(string(property.Status))
	record(ctx, s.audit, s.log, principal, &property.ID, domain.EventTypePropertyCreated, map[string]any{
		"title": property.Title,
		"rent":  property.Rent,
	})
	s.signal(ctx, notify.OwnerProperties(property.OwnerID), notify.TopicAdminQueue)

	return property, nil
}

func (s *propertyService) GetByID(ctx context.Context, id uuid.UUID, principal domain.Principal) (*domain.Property, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr("property", "get property", err, "property_id", id)
	}
	if !property.VisibleTo(principal) {
		return nil, apperrors.NotFound("property")
	}
	return property, nil
}

func (s *propertyService) ListLive(ctx context.Context, filter domain.LiveFilter) ([]*domain.Property, error) {
	filter, err := filter.Validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	properties, err := s.propertyRepo.ListLive(ctx, filter)
	if err != nil {
		return nil, s.storageError("list live properties", err)
	}
	return properties, nil
}

func (s *propertyService) ListMine(ctx context.Context, principal domain.Principal) ([]*domain.Property, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Authorization("sign in to see your listings")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	properties, err := s.propertyRepo.ListByOwner(ctx, principal.UserID)
	if err != nil {
		return nil, s.storageError("list owner properties", err, "owner_id", principal.UserID)
	}
	return properties, nil
}

func (s *propertyService) ListForAdmin(ctx context.Context, principal domain.Principal, status *domain.PropertyStatus) ([]*domain.Property, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if status != nil && !status.Valid() {
		return nil, apperrors.Validation("unknown status %q", *status)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	properties, err := s.propertyRepo.List(ctx, status)
	if err != nil {
		return nil, s.storageError("list properties", err)
	}
	return properties, nil
}

func (s *propertyService) QueueSummary(ctx context.Context, principal domain.Principal) (domain.QueueSummary, error) {
	if err := requireAdmin(principal); err != nil {
		return domain.QueueSummary{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	counts, err := s.propertyRepo.CountByStatus(ctx)
	if err != nil {
		return domain.QueueSummary{}, s.storageError("count properties", err)
	}
	return domain.NewQueueSummary(counts), nil
}

func (s *propertyService) AssignVerifier(ctx context.Context, principal domain.Principal, id uuid.UUID, verifierName string, estimatedDays *int) (*domain.Property, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	verifierName = strings.TrimSpace(verifierName)
	if verifierName == "" {
		return nil, apperrors.Validation("verifier name is required")
	}
	if estimatedDays != nil && *estimatedDays < 0 {
		return nil, apperrors.Validation("estimated days cannot be negative")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	property, err := s.propertyRepo.AssignVerifier(ctx, id, domain.AssignableStatuses, verifierName, estimatedDays, s.now())
	if err != nil {
		return nil, s.transitionError("assign verifier", id, err)
	}

	s.log.Info("Verifier assigned", "property_id", id, "verifier", verifierName)
	metrics.ObserveTransition(string(property.Status))
	record(ctx, s.audit, s.log, principal, &property.ID, domain.EventTypeVerifierAssigned, map[string]any{
		"verifier":       verifierName,
		"estimated_days": estimatedDays,
	})
	s.signal(ctx, notify.TopicAdminQueue, notify.Property(id), notify.OwnerProperties(property.OwnerID))

	return property, nil
}

func (s *propertyService) Decide(ctx context.Context, principal domain.Principal, id uuid.UUID, decision domain.Decision) (*domain.Property, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	decision, err := decision.Validate()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	property, err := s.propertyRepo.Decide(ctx, id, domain.DecidableStatuses, decision, s.now())
	if err != nil {
		return nil, s.transitionError("decide property", id, err)
	}

	s.log.Info("Property decided", "property_id", id, "status", property.Status)
	metrics.ObserveTransition(string(property.Status))
	payload := map[string]any{"status": string(property.Status)}
	if property.RejectionReason != nil {
		payload["rejection_reason"] = *property.RejectionReason
	}
	record(ctx, s.audit, s.log, principal, &property.ID, domain.EventTypePropertyDecided, payload)
	s.signal(ctx, notify.TopicAdminQueue, notify.TopicExplore, notify.Property(id), notify.OwnerProperties(property.OwnerID))

	return property, nil
}

func (s *propertyService) transitionError(op string, id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("property")
	case errors.Is(err, repository.ErrConflict):
		return apperrors.InvalidState("property has already been decided")
	}
	return s.storageError(op, err, "property_id", id)
}

func (s *propertyService) Update(ctx context.Context, principal domain.Principal, id uuid.UUID, patch domain.PropertyPatch) (*domain.Property, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Authorization("sign in to edit a property")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr("property", "get property", err, "property_id", id)
	}
	if !property.ManageableBy(principal) {
		return nil, apperrors.Authorization("only the owner or an admin can edit this property")
	}
	if patch.AdminNotes != nil && !principal.IsAdmin() {
		return nil, apperrors.Authorization("only an admin can set admin notes")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	property, err = s.propertyRepo.Update(ctx, id, patch.Normalized(), s.now())
	if err != nil {
		return nil, s.notFoundOr("property", "update property", err, "property_id", id)
	}

	record(ctx, s.audit, s.log, principal, &property.ID, domain.EventTypePropertyUpdated, nil)
	topics := []string{notify.OwnerProperties(property.OwnerID), notify.TopicAdminQueue, notify.Property(id)}
	if property.Status == domain.StatusLive {
		topics = append(topics, notify.TopicExplore)
	}
	s.signal(ctx, topics...)

	return property, nil
}

func (s *propertyService) Delete(ctx context.Context, principal domain.Principal, id uuid.UUID) error {
	if !principal.IsAuthenticated() {
		return apperrors.Authorization("sign in to delete a property")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return s.notFoundOr("property", "get property", err, "property_id", id)
	}
	if !property.ManageableBy(principal) {
		return apperrors.Authorization("only the owner or an admin can delete this property")
	}

	participants, err := s.propertyRepo.Delete(ctx, id)
	if err != nil {
		return s.notFoundOr("property", "delete property", err, "property_id", id)
	}

	s.log.Info("Property deleted", "property_id", id, "actor_id", principal.UserID)
	record(ctx, s.audit, s.log, principal, &id, domain.EventTypePropertyDeleted, map[string]any{
		"title":  property.Title,
		"status": string(property.Status),
	})
	topics := []string{
		notify.OwnerProperties(property.OwnerID),
		notify.TopicAdminQueue,
		notify.TopicExplore,
		notify.Property(id),
	}
	for _, userID := range participants {
		topics = append(topics, notify.UserChats(userID))
	}
	s.signal(ctx, topics...)

	return nil
}
