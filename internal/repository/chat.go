package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rental_marketplace/internal/domain"
	"rental_marketplace/pkg/logger"
)

type ChatRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error)
	GetByRenterAndProperty(ctx context.Context, renterID, propertyID uuid.UUID) (*domain.Chat, error)
	// Create returns ErrDuplicate when a chat for the same renter and property already exists.
	Create(ctx context.Context, chat *domain.Chat) error
	// AppendMessage stores the message and bumps the chat's updated_at in one transaction.
	AppendMessage(ctx context.Context, message *domain.Message) error
	// Messages returns the chat history ordered by (created_at, seq).
	Messages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ChatListItem, error)
}

type chatRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewChatRepository(db *pgxpool.Pool, log logger.Logger) ChatRepository {
	return &chatRepository{db: db, log: log}
}

const chatColumns = `id, property_id, renter_id, owner_id, created_at, updated_at`

func scanChat(row pgx.Row) (*domain.Chat, error) {
	chat := &domain.Chat{}
	err := row.Scan(&chat.ID, &chat.PropertyID, &chat.RenterID, &chat.OwnerID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return chat, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chat, error) {
	chat, err := scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to get chat", "error", err, "chat_id", id)
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}

func (r *chatRepository) GetByRenterAndProperty(ctx context.Context, renterID, propertyID uuid.UUID) (*domain.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE renter_id = $1 AND property_id = $2`

	chat, err := scanChat(r.db.QueryRow(ctx, query, renterID, propertyID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		r.log.Error("Failed to look up chat", "error", err, "renter_id", renterID, "property_id", propertyID)
		return nil, fmt.Errorf("get chat by renter and property: %w", err)
	}
	return chat, nil
}

func (r *chatRepository) Create(ctx context.Context, chat *domain.Chat) error {
	query := `
		INSERT INTO chats (id, property_id, renter_id, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		chat.ID, chat.PropertyID, chat.RenterID, chat.OwnerID, chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.log.Debug("Chat already exists", "renter_id", chat.RenterID, "property_id", chat.PropertyID)
			return ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		r.log.Error("Failed to create chat", "error", err, "property_id", chat.PropertyID)
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *domain.Message) error {
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (id, chat_id, sender_id, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING seq
		`, message.ID, message.ChatID, message.SenderID, message.Text, message.CreatedAt).Scan(&message.Seq)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE chats SET updated_at = GREATEST(updated_at, $2) WHERE id = $1`,
			message.ChatID, message.CreatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || isForeignKeyViolation(err) {
			return ErrNotFound
		}
		r.log.Error("Failed to append message", "error", err, "chat_id", message.ChatID)
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *chatRepository) Messages(ctx context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT id, seq, chat_id, sender_id, text, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, chatID)
	if err != nil {
		r.log.Error("Failed to get messages", "error", err, "chat_id", chatID)
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.Seq, &m.ChatID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("get messages: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return messages, nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ChatListItem, error) {
	query := `
		SELECT c.id, c.owner_id, c.updated_at,
		       p.id, p.title, p.rent, p.owner_images[1], p.status,
		       u.id, u.display_name, u.avatar_url,
		       m.id, m.seq, m.sender_id, m.text, m.created_at
		FROM chats c
		JOIN properties p ON p.id = c.property_id
		JOIN users u ON u.id = CASE WHEN c.renter_id = $1 THEN c.owner_id ELSE c.renter_id END
		LEFT JOIN LATERAL (
			SELECT id, seq, sender_id, text, created_at
			FROM messages
			WHERE chat_id = c.id
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		) m ON TRUE
		WHERE c.renter_id = $1 OR c.owner_id = $1
		ORDER BY c.updated_at DESC, c.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list chats", "error", err, "user_id", userID)
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ChatListItem, 0)
	for rows.Next() {
		var (
			item      domain.ChatListItem
			ownerID   uuid.UUID
			status    string
			msgID     *uuid.UUID
			msgSeq    *int64
			msgSender *uuid.UUID
			msgText   *string
			msgAt     *time.Time
		)
		err := rows.Scan(
			&item.ID, &ownerID, &item.UpdatedAt,
			&item.Property.ID, &item.Property.Title, &item.Property.Rent, &item.Property.CoverImage, &status,
			&item.Counterpart.ID, &item.Counterpart.DisplayName, &item.Counterpart.AvatarURL,
			&msgID, &msgSeq, &msgSender, &msgText, &msgAt,
		)
		if err != nil {
			r.log.Error("Failed to scan chat", "error", err)
			return nil, fmt.Errorf("list chats: %w", err)
		}
		item.Property.Status = domain.PropertyStatus(status)
		item.ViewerIsOwner = ownerID == userID
		if msgID != nil {
			item.LastMessage = &domain.Message{
				ID: *msgID, Seq: *msgSeq, ChatID: item.ID, SenderID: *msgSender, Text: *msgText, CreatedAt: *msgAt,
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return items, nil
}
