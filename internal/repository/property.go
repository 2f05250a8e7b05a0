package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rental_marketplace/internal/domain"
	"rental_marketplace/pkg/logger"
)

type PropertyRepository interface {
	Create(ctx context.Context, property *domain.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error)
	// Update writes only the fields the patch sets, so concurrent admin changes
	// to other columns survive. Status and verification fields are never touched.
	Update(ctx context.Context, id uuid.UUID, patch domain.PropertyPatch, at time.Time) (*domain.Property, error)
	// AssignVerifier moves a property into verification if its status is one of from.
	// ErrNotFound if absent, ErrConflict if present in another status.
	AssignVerifier(ctx context.Context, id uuid.UUID, from []domain.PropertyStatus, verifier string, estimatedDays *int, at time.Time) (*domain.Property, error)
	// Decide applies an admin decision under the same conditions as AssignVerifier.
	Decide(ctx context.Context, id uuid.UUID, from []domain.PropertyStatus, decision domain.Decision, at time.Time) (*domain.Property, error)
	// Delete removes the property with its chats and returns the users who took part in them.
	Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	ListLive(ctx context.Context, filter domain.LiveFilter) ([]*domain.Property, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Property, error)
	List(ctx context.Context, status *domain.PropertyStatus) ([]*domain.Property, error)
	CountByStatus(ctx context.Context) (map[domain.PropertyStatus]int, error)
}

type propertyRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewPropertyRepository(db *pgxpool.Pool, log logger.Logger) PropertyRepository {
	return &propertyRepository{db: db, log: log}
}

const propertyColumns = `id, owner_id, title, description, address, location_lat, location_lng, rent,
	property_type, amenities, owner_images, verified_images, owner_contact, status,
	assigned_verifier, verification_start_date, verification_end_date, estimated_days,
	admin_notes, rejection_reason, created_at, updated_at`

func scanProperty(row pgx.Row) (*domain.Property, error) {
	p := &domain.Property{}
	var propertyType, status string
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Address, &p.LocationLat, &p.LocationLng, &p.Rent,
		&propertyType, &p.Amenities, &p.OwnerImages, &p.VerifiedImages, &p.OwnerContact, &status,
		&p.AssignedVerifier, &p.VerificationStartDate, &p.VerificationEndDate, &p.EstimatedDays,
		&p.AdminNotes, &p.RejectionReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.PropertyType = domain.PropertyType(propertyType)
	p.Status = domain.PropertyStatus(status)
	if p.Amenities == nil {
		p.Amenities = []string{}
	}
	if p.OwnerImages == nil {
		p.OwnerImages = []string{}
	}
	if p.VerifiedImages == nil {
		p.VerifiedImages = []string{}
	}
	return p, nil
}

func collectProperties(rows pgx.Rows) ([]*domain.Property, error) {
	defer rows.Close()

	properties := make([]*domain.Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func statusStrings(statuses []domain.PropertyStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *propertyRepository) Create(ctx context.Context, p *domain.Property) error {
	query := `
		INSERT INTO properties (
			id, owner_id, title, description, address, location_lat, location_lng, rent,
			property_type, amenities, owner_images, verified_images, owner_contact, status,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.OwnerID, p.Title, p.Description, p.Address, p.LocationLat, p.LocationLng, p.Rent,
		string(p.PropertyType), p.Amenities, p.OwnerImages, p.VerifiedImages, p.OwnerContact, string(p.Status),
		p.CreatedAt, p.UpdatedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.Error("Failed to create property", "error", err, "owner_id", p.OwnerID)
		return fmt.Errorf("create property: %w", err)
	}
	return nil
}

func (r *propertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`

	p, err := scanProperty(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to get property", "error", err, "property_id", id)
		return nil, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}

func (r *propertyRepository) Update(ctx context.Context, id uuid.UUID, patch domain.PropertyPatch, at time.Time) (*domain.Property, error) {
	query, args := buildPatchQuery(id, patch, at)

	p, err := scanProperty(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to update property", "error", err, "property_id", id)
		return nil, fmt.Errorf("update property: %w", err)
	}
	return p, nil
}

// buildPatchQuery renders an UPDATE whose SET list holds updated_at plus one
// assignment per non-nil patch field.
func buildPatchQuery(id uuid.UUID, patch domain.PropertyPatch, at time.Time) (string, []any) {
	args := []any{id, at}
	sets := []string{"updated_at = $2"}
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Address != nil {
		set("address", *patch.Address)
	}
	if patch.LocationLat != nil {
		set("location_lat", *patch.LocationLat)
	}
	if patch.LocationLng != nil {
		set("location_lng", *patch.LocationLng)
	}
	if patch.Rent != nil {
		set("rent", *patch.Rent)
	}
	if patch.PropertyType != nil {
		set("property_type", string(*patch.PropertyType))
	}
	if patch.Amenities != nil {
		set("amenities", *patch.Amenities)
	}
	if patch.OwnerImages != nil {
		set("owner_images", *patch.OwnerImages)
	}
	if patch.OwnerContact != nil {
		set("owner_contact", *patch.OwnerContact)
	}
	if patch.AdminNotes != nil {
		set("admin_notes", *patch.AdminNotes)
	}

	query := `UPDATE properties SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + propertyColumns
	return query, args
}

func (r *propertyRepository) AssignVerifier(ctx context.Context, id uuid.UUID, from []domain.PropertyStatus, verifier string, estimatedDays *int, at time.Time) (*domain.Property, error) {
	query := `
		UPDATE properties
		SET status = $2, assigned_verifier = $3, estimated_days = $4,
		    verification_start_date = $5, updated_at = $5
		WHERE id = $1 AND status = ANY($6::text[])
		RETURNING ` + propertyColumns

	p, err := scanProperty(r.db.QueryRow(ctx, query,
		id, string(domain.StatusVerificationInProgress), verifier, estimatedDays, at, statusStrings(from),
	))
	return r.transitionResult(ctx, id, p, err, "assign verifier")
}

func (r *propertyRepository) Decide(ctx context.Context, id uuid.UUID, from []domain.PropertyStatus, decision domain.Decision, at time.Time) (*domain.Property, error) {
	var verifiedImages []string
	var rejectionReason *string
	if decision.Status == domain.StatusLive {
		verifiedImages = decision.VerifiedImages
	} else {
		reason := decision.RejectionReason
		rejectionReason = &reason
	}

	query := `
		UPDATE properties
		SET status = $2, verification_end_date = $3, updated_at = $3,
		    verified_images = COALESCE($4::text[], verified_images),
		    rejection_reason = $5,
		    admin_notes = COALESCE($6, admin_notes)
		WHERE id = $1 AND status = ANY($7::text[])
		RETURNING ` + propertyColumns

	p, err := scanProperty(r.db.QueryRow(ctx, query,
		id, string(decision.Status), at, verifiedImages, rejectionReason, decision.AdminNotes, statusStrings(from),
	))
	return r.transitionResult(ctx, id, p, err, "decide property")
}

// transitionResult tells a missing row apart from one whose status did not match.
func (r *propertyRepository) transitionResult(ctx context.Context, id uuid.UUID, p *domain.Property, err error, op string) (*domain.Property, error) {
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		r.log.Error("Failed to transition property", "error", err, "property_id", id, "op", op)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM properties WHERE id = $1)`, id).Scan(&exists); err != nil {
		r.log.Error("Failed to classify property transition", "error", err, "property_id", id)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil, ErrConflict
	}
	return nil, ErrNotFound
}

func (r *propertyRepository) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var participants []uuid.UUID

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT renter_id FROM chats WHERE property_id = $1
			UNION
			SELECT owner_id FROM chats WHERE property_id = $1
		`, id)
		if err != nil {
			return err
		}
		participants, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to delete property", "error", err, "property_id", id)
		return nil, fmt.Errorf("delete property: %w", err)
	}
	return participants, nil
}

func (r *propertyRepository) ListLive(ctx context.Context, filter domain.LiveFilter) ([]*domain.Property, error) {
	query, args := buildLiveQuery(filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list live properties", "error", err)
		return nil, fmt.Errorf("list live properties: %w", err)
	}
	properties, err := collectProperties(rows)
	if err != nil {
		r.log.Error("Failed to scan live properties", "error", err)
		return nil, fmt.Errorf("list live properties: %w", err)
	}
	return properties, nil
}

// buildLiveQuery renders the explore listing query. Only LIVE rows are ever returned.
func buildLiveQuery(filter domain.LiveFilter) (string, []any) {
	var (
		conds = []string{"status = $1"}
		args  = []any{string(domain.StatusLive)}
	)
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Search != "" {
		p := next("%" + escapeLike(filter.Search) + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s OR address ILIKE %[1]s)", p))
	}
	if filter.MinRent != nil {
		conds = append(conds, "rent >= "+next(*filter.MinRent))
	}
	if filter.MaxRent != nil {
		conds = append(conds, "rent <= "+next(*filter.MaxRent))
	}
	if filter.PropertyType != nil {
		conds = append(conds, "property_type = "+next(string(*filter.PropertyType)))
	}
	if len(filter.Amenities) > 0 {
		conds = append(conds, "amenities @> "+next(filter.Amenities)+"::text[]")
	}

	query := `SELECT ` + propertyColumns + ` FROM properties WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY created_at DESC, id`
	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *propertyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE owner_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		r.log.Error("Failed to list owner properties", "error", err, "owner_id", ownerID)
		return nil, fmt.Errorf("list owner properties: %w", err)
	}
	properties, err := collectProperties(rows)
	if err != nil {
		return nil, fmt.Errorf("list owner properties: %w", err)
	}
	return properties, nil
}

func (r *propertyRepository) List(ctx context.Context, status *domain.PropertyStatus) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list properties", "error", err)
		return nil, fmt.Errorf("list properties: %w", err)
	}
	properties, err := collectProperties(rows)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return properties, nil
}

func (r *propertyRepository) CountByStatus(ctx context.Context) (map[domain.PropertyStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM properties GROUP BY status`)
	if err != nil {
		r.log.Error("Failed to count properties", "error", err)
		return nil, fmt.Errorf("count properties: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.PropertyStatus]int, len(domain.AllStatuses))
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count properties: %w", err)
		}
		counts[domain.PropertyStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count properties: %w", err)
	}
	return counts, nil
}
