package service

import (
	"context"

	"github.com/google/uuid"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/repository"
	"rental_marketplace/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actor domain.Principal, propertyID *uuid.UUID, eventType string, payload map[string]any) error
}

type auditService struct {
	engine
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository, opts Options, log logger.Logger) AuditService {
	return &auditService{
		engine:    newEngine(opts, log),
		auditRepo: auditRepo,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor domain.Principal, propertyID *uuid.UUID, eventType string, payload map[string]any) error {
	if payload == nil {
		payload = make(map[string]any)
	}

	auditLog := &domain.AuditLog{
		EventTime:  s.now(),
		ActorRole:  domain.ActorRoleOf(actor),
		PropertyID: propertyID,
		EventType:  eventType,
		Payload:    payload,
	}
	if actor.IsAuthenticated() {
		id := actor.UserID
		auditLog.ActorUserID = &id
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.auditRepo.CreateLog(ctx, auditLog)
}

// record writes an audit entry without letting a failure reach the caller.
func record(ctx context.Context, audit AuditService, log logger.Logger, actor domain.Principal, propertyID *uuid.UUID, eventType string, payload map[string]any) {
	if audit == nil {
		return
	}
	if err := audit.LogEvent(ctx, actor, propertyID, eventType, payload); err != nil {
		log.Warn("Failed to write audit log", "error", err, "event_type", eventType)
	}
}
