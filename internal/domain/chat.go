package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "rental_marketplace/pkg/errors"
)

// MaxMessageLength bounds a single message body in characters.
const MaxMessageLength = 4000

// Chat is the single conversation between a renter and a listing owner about
// one property. At most one exists per (RenterID, PropertyID).
type Chat struct {
	ID         uuid.UUID `json:"id"`
	PropertyID uuid.UUID `json:"propertyId"`
	RenterID   uuid.UUID `json:"renterId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (c.RenterID == userID || c.OwnerID == userID)
}

// OtherParticipant returns the counterpart of userID. It assumes userID is a participant.
func (c *Chat) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.RenterID == userID {
		return c.OwnerID
	}
	return c.RenterID
}

func (c *Chat) Participants() []uuid.UUID {
	if c.RenterID == c.OwnerID {
		return []uuid.UUID{c.RenterID}
	}
	return []uuid.UUID{c.RenterID, c.OwnerID}
}

// Message is immutable once stored. Seq breaks ties between equal timestamps.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Seq       int64     `json:"seq"`
	ChatID    uuid.UUID `json:"chatId"`
	SenderID  uuid.UUID `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateMessageText trims the body and enforces the length bounds.
func ValidateMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Validation("message text is required")
	}
	if len([]rune(text)) > MaxMessageLength {
		return "", apperrors.Validation("message text exceeds %d characters", MaxMessageLength)
	}
	return text, nil
}

// ChatListItem is one row of a user's inbox.
type ChatListItem struct {
	ID            uuid.UUID       `json:"id"`
	Property      PropertySummary `json:"property"`
	Counterpart   UserProfile     `json:"counterpart"`
	LastMessage   *Message        `json:"lastMessage,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	ViewerIsOwner bool            `json:"viewerIsOwner"`
}

// ChatThread is a chat with its participants and full history.
type ChatThread struct {
	Chat     Chat            `json:"chat"`
	Property PropertySummary `json:"property"`
	Renter   UserContact     `json:"renter"`
	Owner    UserContact     `json:"owner"`
	Messages []Message       `json:"messages"`
}
