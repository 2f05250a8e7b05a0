package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rental_marketplace/internal/domain"
	"rental_marketplace/pkg/logger"
)

type UserRepository interface {
	// Upsert creates the user on first sight of an identity and refreshes the
	// profile fields afterwards. The role is never touched.
	Upsert(ctx context.Context, identity domain.Identity) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.User, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, external_id, role, display_name, contact_email, contact_phone, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var role string
	err := row.Scan(
		&user.ID, &user.ExternalID, &role, &user.DisplayName, &user.ContactEmail,
		&user.ContactPhone, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)
	return user, nil
}

func (r *userRepository) Upsert(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	query := `
		INSERT INTO users (id, external_id, role, display_name, contact_email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    contact_email = EXCLUDED.contact_email,
		    avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
		    updated_at = NOW()
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query,
		uuid.New(), identity.ExternalID, string(domain.RoleUser),
		identity.DisplayName, strings.ToLower(strings.TrimSpace(identity.Email)), identity.AvatarURL,
	))
	if err != nil {
		r.log.Error("Failed to upsert user", "error", err, "external_id", identity.ExternalID)
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to get user by external ID", "error", err)
		return nil, fmt.Errorf("get user by external id: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT ` + userColumns + ` FROM users WHERE contact_email = $1 ORDER BY created_at LIMIT 1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to get user by email", "error", err, "email", email)
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.User, error) {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, string(role)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to update user role", "error", err, "user_id", id)
		return nil, fmt.Errorf("update user role: %w", err)
	}
	return user, nil
}
