package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "rental_marketplace/pkg/errors"
)

type PropertyStatus string

const (
	StatusPendingAdminReview     PropertyStatus = "PENDING_ADMIN_REVIEW"
	StatusVerificationInProgress PropertyStatus = "VERIFICATION_IN_PROGRESS"
	StatusLive                   PropertyStatus = "LIVE"
	StatusRejected               PropertyStatus = "REJECTED"
)

// AllStatuses lists the lifecycle in order.
var AllStatuses = []PropertyStatus{
	StatusPendingAdminReview,
	StatusVerificationInProgress,
	StatusLive,
	StatusRejected,
}

func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusPendingAdminReview, StatusVerificationInProgress, StatusLive, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the admin decision has been made.
func (s PropertyStatus) IsTerminal() bool {
	return s == StatusLive || s == StatusRejected
}

// Source states from which each transition may start.
var (
	AssignableStatuses = []PropertyStatus{StatusPendingAdminReview, StatusVerificationInProgress}
	DecidableStatuses  = []PropertyStatus{StatusPendingAdminReview, StatusVerificationInProgress}
)

type PropertyType string

const (
	PropertyTypeRoom  PropertyType = "room"
	PropertyTypeFlat  PropertyType = "flat"
	PropertyTypeHouse PropertyType = "house"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeRoom, PropertyTypeFlat, PropertyTypeHouse:
		return true
	}
	return false
}

type Property struct {
	ID                    uuid.UUID      `json:"id"`
	OwnerID               uuid.UUID      `json:"ownerId"`
	Title                 string         `json:"title"`
	Description           string         `json:"description"`
	Address               string         `json:"address"`
	LocationLat           *float64       `json:"locationLat,omitempty"`
	LocationLng           *float64       `json:"locationLng,omitempty"`
	Rent                  int            `json:"rent"`
	PropertyType          PropertyType   `json:"propertyType"`
	Amenities             []string       `json:"amenities"`
	OwnerImages           []string       `json:"ownerImages"`
	VerifiedImages        []string       `json:"verifiedImages"`
	OwnerContact          string         `json:"ownerContact"`
	Status                PropertyStatus `json:"status"`
	AssignedVerifier      *string        `json:"assignedVerifier,omitempty"`
	VerificationStartDate *time.Time     `json:"verificationStartDate,omitempty"`
	VerificationEndDate   *time.Time     `json:"verificationEndDate,omitempty"`
	EstimatedDays         *int           `json:"estimatedDays,omitempty"`
	AdminNotes            *string        `json:"adminNotes,omitempty"`
	RejectionReason       *string        `json:"rejectionReason,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// VisibleTo applies the listing visibility rule: LIVE is public, anything
// else only to the owner and admins.
func (p *Property) VisibleTo(principal Principal) bool {
	if p.Status == StatusLive {
		return true
	}
	return p.ManageableBy(principal)
}

// ManageableBy reports whether the principal may edit or delete the listing.
func (p *Property) ManageableBy(principal Principal) bool {
	if !principal.IsAuthenticated() {
		return false
	}
	return principal.IsAdmin() || p.OwnerID == principal.UserID
}

func (p *Property) Summary() PropertySummary {
	s := PropertySummary{
		ID:     p.ID,
		Title:  p.Title,
		Rent:   p.Rent,
		Status: p.Status,
	}
	if len(p.OwnerImages) > 0 {
		cover := p.OwnerImages[0]
		s.CoverImage = &cover
	}
	return s
}

type PropertySummary struct {
	ID         uuid.UUID      `json:"id"`
	Title      string         `json:"title"`
	Rent       int            `json:"rent"`
	CoverImage *string        `json:"coverImage,omitempty"`
	Status     PropertyStatus `json:"status"`
}

// PropertyInput is the owner-submitted listing.
type PropertyInput struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Address      string       `json:"address"`
	LocationLat  *float64     `json:"locationLat,omitempty"`
	LocationLng  *float64     `json:"locationLng,omitempty"`
	Rent         int          `json:"rent"`
	PropertyType PropertyType `json:"propertyType"`
	Amenities    []string     `json:"amenities"`
	OwnerImages  []string     `json:"ownerImages"`
	OwnerContact string       `json:"ownerContact"`
}

// Validate checks the input and returns it with whitespace and duplicates stripped.
func (in PropertyInput) Validate() (PropertyInput, error) {
	out := in
	out.Title = strings.TrimSpace(in.Title)
	out.Description = strings.TrimSpace(in.Description)
	out.Address = strings.TrimSpace(in.Address)
	out.OwnerContact = strings.TrimSpace(in.OwnerContact)
	out.Amenities = NormalizeSet(in.Amenities)
	out.OwnerImages = NormalizeList(in.OwnerImages)

	if out.OwnerContact == "" {
		return out, apperrors.Validation("contact details are required")
	}
	if out.Title == "" {
		return out, apperrors.Validation("title is required")
	}
	if err := validateRent(out.Rent); err != nil {
		return out, err
	}
	if !out.PropertyType.Valid() {
		return out, apperrors.Validation("property type must be one of room, flat, house")
	}
	if err := validateLocation(out.LocationLat, out.LocationLng); err != nil {
		return out, err
	}
	return out, nil
}

// PropertyPatch is a partial update. Nil fields are left untouched; status is
// not patchable.
type PropertyPatch struct {
	Title        *string       `json:"title,omitempty"`
	Description  *string       `json:"description,omitempty"`
	Address      *string       `json:"address,omitempty"`
	LocationLat  *float64      `json:"locationLat,omitempty"`
	LocationLng  *float64      `json:"locationLng,omitempty"`
	Rent         *int          `json:"rent,omitempty"`
	PropertyType *PropertyType `json:"propertyType,omitempty"`
	Amenities    *[]string     `json:"amenities,omitempty"`
	OwnerImages  *[]string     `json:"ownerImages,omitempty"`
	OwnerContact *string       `json:"ownerContact,omitempty"`
	AdminNotes   *string       `json:"adminNotes,omitempty"`
}

func (p PropertyPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Address == nil &&
		p.LocationLat == nil && p.LocationLng == nil && p.Rent == nil &&
		p.PropertyType == nil && p.Amenities == nil && p.OwnerImages == nil &&
		p.OwnerContact == nil && p.AdminNotes == nil
}

func (p PropertyPatch) Validate() error {
	if p.IsEmpty() {
		return apperrors.Validation("nothing to update")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperrors.Validation("title cannot be blank")
	}
	if p.OwnerContact != nil && strings.TrimSpace(*p.OwnerContact) == "" {
		return apperrors.Validation("contact details cannot be blank")
	}
	if p.Rent != nil {
		if err := validateRent(*p.Rent); err != nil {
			return err
		}
	}
	if p.PropertyType != nil && !p.PropertyType.Valid() {
		return apperrors.Validation("property type must be one of room, flat, house")
	}
	return validateLocation(p.LocationLat, p.LocationLng)
}

// Normalized trims the text fields and cleans the lists of a patch.
func (p PropertyPatch) Normalized() PropertyPatch {
	out := p
	out.Title = trimmed(p.Title)
	out.Description = trimmed(p.Description)
	out.Address = trimmed(p.Address)
	out.OwnerContact = trimmed(p.OwnerContact)
	out.AdminNotes = trimmed(p.AdminNotes)
	if p.Amenities != nil {
		amenities := NormalizeSet(*p.Amenities)
		out.Amenities = &amenities
	}
	if p.OwnerImages != nil {
		images := NormalizeList(*p.OwnerImages)
		out.OwnerImages = &images
	}
	return out
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// Apply copies the set fields onto the property.
func (p PropertyPatch) Apply(prop *Property) {
	p = p.Normalized()
	if p.Title != nil {
		prop.Title = *p.Title
	}
	if p.Description != nil {
		prop.Description = *p.Description
	}
	if p.Address != nil {
		prop.Address = *p.Address
	}
	if p.LocationLat != nil {
		prop.LocationLat = p.LocationLat
	}
	if p.LocationLng != nil {
		prop.LocationLng = p.LocationLng
	}
	if p.Rent != nil {
		prop.Rent = *p.Rent
	}
	if p.PropertyType != nil {
		prop.PropertyType = *p.PropertyType
	}
	if p.Amenities != nil {
		prop.Amenities = *p.Amenities
	}
	if p.OwnerImages != nil {
		prop.OwnerImages = *p.OwnerImages
	}
	if p.OwnerContact != nil {
		prop.OwnerContact = *p.OwnerContact
	}
	if p.AdminNotes != nil {
		prop.AdminNotes = p.AdminNotes
	}
}

// Decision is an admin verdict on a listing.
type Decision struct {
	Status          PropertyStatus `json:"status"`
	AdminNotes      *string        `json:"adminNotes,omitempty"`
	VerifiedImages  []string       `json:"verifiedImages,omitempty"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
}

func (d Decision) Validate() (Decision, error) {
	out := d
	out.VerifiedImages = NormalizeList(d.VerifiedImages)
	out.RejectionReason = strings.TrimSpace(d.RejectionReason)

	switch d.Status {
	case StatusLive:
		if len(out.VerifiedImages) == 0 {
			return out, apperrors.Validation("at least one verified image required")
		}
	case StatusRejected:
		if out.RejectionReason == "" {
			return out, apperrors.Validation("rejection reason is required")
		}
	default:
		return out, apperrors.Validation("decision must be LIVE or REJECTED")
	}
	return out, nil
}

// LiveFilter narrows the public listing. Zero fields impose no constraint.
type LiveFilter struct {
	Search       string
	MinRent      *int
	MaxRent      *int
	PropertyType *PropertyType
	Amenities    []string
}

func (f LiveFilter) Validate() (LiveFilter, error) {
	out := f
	out.Search = strings.TrimSpace(f.Search)
	out.Amenities = NormalizeSet(f.Amenities)

	if f.MinRent != nil && *f.MinRent < 0 {
		return out, apperrors.Validation("minimum rent cannot be negative")
	}
	if f.MaxRent != nil && *f.MaxRent < 0 {
		return out, apperrors.Validation("maximum rent cannot be negative")
	}
	if f.MinRent != nil && f.MaxRent != nil && *f.MinRent > *f.MaxRent {
		return out, apperrors.Validation("minimum rent cannot exceed maximum rent")
	}
	if f.PropertyType != nil && !f.PropertyType.Valid() {
		return out, apperrors.Validation("unknown property type %q", *f.PropertyType)
	}
	return out, nil
}

// QueueSummary counts listings per lifecycle bucket.
type QueueSummary struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Live       int `json:"live"`
	Rejected   int `json:"rejected"`
	Total      int `json:"total"`
}

func NewQueueSummary(counts map[PropertyStatus]int) QueueSummary {
	s := QueueSummary{
		Pending:    counts[StatusPendingAdminReview],
		InProgress: counts[StatusVerificationInProgress],
		Live:       counts[StatusLive],
		Rejected:   counts[StatusRejected],
	}
	s.Total = s.Pending + s.InProgress + s.Live + s.Rejected
	return s
}

// NormalizeSet trims, drops blanks and de-duplicates while keeping first-seen order.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// NormalizeList trims and drops blanks, keeping order and duplicates.
func NormalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validateRent(rent int) error {
	if rent <= 0 {
		return apperrors.Validation("rent must be greater than zero")
	}
	return nil
}

func validateLocation(lat, lng *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return apperrors.Validation("latitude must be between -90 and 90")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		return apperrors.Validation("longitude must be between -180 and 180")
	}
	return nil
}
