package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64          `json:"id"`
	EventTime   time.Time      `json:"eventTime"`
	ActorUserID *uuid.UUID     `json:"actorUserId,omitempty"`
	ActorRole   string         `json:"actorRole"`
	PropertyID  *uuid.UUID     `json:"propertyId,omitempty"`
	EventType   string         `json:"eventType"`
	Payload     map[string]any `json:"payload"`
}

const (
	ActorRoleUser   = "USER"
	ActorRoleAdmin  = "ADMIN"
	ActorRoleSystem = "SYSTEM"
)

const (
	EventTypePropertyCreated  = "PROPERTY_CREATED"
	EventTypePropertyUpdated  = "PROPERTY_UPDATED"
	EventTypePropertyDeleted  = "PROPERTY_DELETED"
	EventTypeVerifierAssigned = "VERIFIER_ASSIGNED"
	EventTypePropertyDecided  = "PROPERTY_DECIDED"
	EventTypeUserRoleChanged  = "USER_ROLE_CHANGED"
)

// ActorRoleOf maps a principal to the role recorded in the audit trail.
func ActorRoleOf(p Principal) string {
	switch {
	case p.IsAdmin():
		return ActorRoleAdmin
	case p.IsAuthenticated():
		return ActorRoleUser
	}
	return ActorRoleSystem
}
