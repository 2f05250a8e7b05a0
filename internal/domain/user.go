package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is the authenticated caller as supplied by the identity adapter.
// The zero value is an anonymous viewer.
type Principal struct {
	UserID uuid.UUID `json:"id"`
	Role   Role      `json:"role"`
}

func Anonymous() Principal {
	return Principal{}
}

func (p Principal) IsAuthenticated() bool {
	return p.UserID != uuid.Nil
}

func (p Principal) IsAdmin() bool {
	return p.IsAuthenticated() && p.Role == RoleAdmin
}

type User struct {
	ID           uuid.UUID `json:"id"`
	ExternalID   string    `json:"-"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"displayName"`
	ContactEmail string    `json:"contactEmail"`
	ContactPhone *string   `json:"contactPhone,omitempty"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}

func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

func (u *User) Contact() UserContact {
	return UserContact{
		UserProfile:  u.Profile(),
		ContactEmail: u.ContactEmail,
		ContactPhone: u.ContactPhone,
	}
}

// UserProfile holds the fields any participant may see about another user.
type UserProfile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   *string   `json:"avatarUrl,omitempty"`
}

type UserContact struct {
	UserProfile
	ContactEmail string  `json:"contactEmail"`
	ContactPhone *string `json:"contactPhone,omitempty"`
}

// Identity is what the external identity provider tells us about a user.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   *string
}
