package schema

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID   string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Role         string    `gorm:"type:varchar(16);not null;default:'USER';check:chk_users_role,role IN ('USER','ADMIN')"`
	DisplayName  string    `gorm:"type:varchar(255);not null"`
	ContactEmail string    `gorm:"type:varchar(320);not null;index"`
	ContactPhone *string   `gorm:"type:varchar(64)"`
	AvatarURL    *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type Property struct {
	ID                    uuid.UUID   `gorm:"type:uuid;primaryKey"`
	OwnerID               uuid.UUID   `gorm:"type:uuid;not null;index"`
	Owner                 User        `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Title                 string      `gorm:"type:varchar(255);not null"`
	Description           string      `gorm:"type:text;not null;default:''"`
	Address               string      `gorm:"type:text;not null;default:''"`
	LocationLat           *float64
	LocationLng           *float64
	Rent                  int         `gorm:"not null;check:chk_properties_rent,rent > 0"`
	PropertyType          string      `gorm:"type:varchar(16);not null;check:chk_properties_type,property_type IN ('room','flat','house')"`
	Amenities             StringArray `gorm:"not null;default:'{}'"`
	OwnerImages           StringArray `gorm:"not null;default:'{}'"`
	VerifiedImages        StringArray `gorm:"not null;default:'{}'"`
	OwnerContact          string      `gorm:"type:varchar(255);not null"`
	Status                string      `gorm:"type:varchar(32);not null;index:idx_properties_status_created,priority:1;check:chk_properties_status,status IN ('PENDING_ADMIN_REVIEW','VERIFICATION_IN_PROGRESS','LIVE','REJECTED')"`
	AssignedVerifier      *string     `gorm:"type:varchar(255)"`
	VerificationStartDate *time.Time
	VerificationEndDate   *time.Time
	EstimatedDays         *int
	AdminNotes            *string   `gorm:"type:text"`
	RejectionReason       *string   `gorm:"type:text"`
	CreatedAt             time.Time `gorm:"not null;index:idx_properties_status_created,priority:2"`
	UpdatedAt             time.Time `gorm:"not null"`
}

type Chat struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PropertyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_chats_renter_property,priority:2"`
	Property   Property  `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE"`
	RenterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_chats_renter_property,priority:1"`
	Renter     User      `gorm:"foreignKey:RenterID;constraint:OnDelete:CASCADE"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Owner      User      `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null;index"`
}

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq       int64     `gorm:"type:bigserial;not null;uniqueIndex"`
	ChatID    uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_chat_order,priority:1"`
	Chat      Chat      `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Sender    User      `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_chat_order,priority:2"`
}

type AuditLog struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	EventTime   time.Time  `gorm:"not null;index"`
	ActorUserID *uuid.UUID `gorm:"type:uuid"`
	ActorRole   string     `gorm:"type:varchar(16);not null"`
	PropertyID  *uuid.UUID `gorm:"type:uuid;index"`
	EventType   string     `gorm:"type:varchar(64);not null"`
	Payload     JSON       `gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_log" }

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{&User{}, &Property{}, &Chat{}, &Message{}, &AuditLog{}}
}
