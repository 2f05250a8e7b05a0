package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/observability/metrics"
	"rental_marketplace/internal/repository"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

type ChatService interface {
	// GetOrCreate returns the single chat between the principal and the
	// property's owner, creating it on first contact.
	GetOrCreate(ctx context.Context, principal domain.Principal, propertyID uuid.UUID) (*domain.Chat, error)
	SendMessage(ctx context.Context, principal domain.Principal, chatID uuid.UUID, text string) (*domain.Message, error)
	ListMine(ctx context.Context, principal domain.Principal) ([]domain.ChatListItem, error)
	GetWithMessages(ctx context.Context, principal domain.Principal, chatID uuid.UUID) (*domain.ChatThread, error)
	// Authorize returns the chat if the principal takes part in it.
	Authorize(ctx context.Context, principal domain.Principal, chatID uuid.UUID) (*domain.Chat, error)
}

type chatService struct {
	engine
	chatRepo     repository.ChatRepository
	propertyRepo repository.PropertyRepository
	userRepo     repository.UserRepository
	publisher    notify.Publisher
}

func NewChatService(chatRepo repository.ChatRepository, propertyRepo repository.PropertyRepository, userRepo repository.UserRepository, publisher notify.Publisher, opts Options, log logger.Logger) ChatService {
	return &chatService{
		engine:       newEngine(opts, log),
		chatRepo:     chatRepo,
		propertyRepo: propertyRepo,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

func (s *chatService) GetOrCreate(ctx context.Context, principal domain.Principal, propertyID uuid.UUID) (*domain.Chat, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Authorization("sign in to contact the owner")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.chatRepo.GetByRenterAndProperty(ctx, principal.UserID, propertyID)
	if err == nil {
		metrics.ObserveChatOpened(false)
		return chat, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.storageError("get chat", err, "property_id", propertyID)
	}

	property, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, s.notFoundOr("property", "get property", err, "property_id", propertyID)
	}
	if !property.VisibleTo(principal) {
		return nil, apperrors.NotFound("property")
	}

	now := s.now()
	chat = &domain.Chat{
		ID:         uuid.New(),
		PropertyID: property.ID,
		RenterID:   principal.UserID,
		OwnerID:    property.OwnerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.chatRepo.Create(ctx, chat); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, s.notFoundOr("property", "create chat", err, "property_id", propertyID)
		}
		// Lost the race to a concurrent first contact; the winner's row is the chat.
		existing, err := s.chatRepo.GetByRenterAndProperty(ctx, principal.UserID, propertyID)
		if err != nil {
			return nil, s.storageError("get chat", err, "property_id", propertyID)
		}
		metrics.ObserveChatOpened(false)
		return existing, nil
	}

	s.log.Info("Chat opened", "chat_id", chat.ID, "property_id", propertyID, "renter_id", chat.RenterID)
	metrics.ObserveChatOpened(true)
	s.publisher.Publish(ctx, notify.Event{
		Topics: []string{notify.UserChats(chat.RenterID), notify.UserChats(chat.OwnerID)},
		At:     now,
	})

	return chat, nil
}

func (s *chatService) SendMessage(ctx context.Context, principal domain.Principal, chatID uuid.UUID, text string) (*domain.Message, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Authorization("sign in to send messages")
	}
	text, err := domain.ValidateMessageText(text)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, s.notFoundOr("chat", "get chat", err, "chat_id", chatID)
	}
	if !chat.HasParticipant(principal.UserID) {
		return nil, apperrors.Authorization("not a participant")
	}

	message := &domain.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		SenderID:  principal.UserID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.chatRepo.AppendMessage(ctx, message); err != nil {
		return nil, s.notFoundOr("chat", "append message", err, "chat_id", chatID)
	}

	metrics.ObserveMessageStored()
	s.publisher.Publish(ctx, notify.Event{
		Topics: []string{notify.Chat(chat.ID)},
		At:     message.CreatedAt,
		Data:   message,
	})
	s.publisher.Publish(ctx, notify.Event{
		Topics: []string{notify.UserChats(chat.RenterID), notify.UserChats(chat.OwnerID)},
		At:     message.CreatedAt,
	})

	return message, nil
}

func (s *chatService) ListMine(ctx context.Context, principal domain.Principal) ([]domain.ChatListItem, error) {
	if !principal.IsAuthenticated() {
		return nil, apperrors.Authorization("sign in to see your chats")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.chatRepo.ListForUser(ctx, principal.UserID)
	if err != nil {
		return nil, s.storageError("list chats", err, "user_id", principal.UserID)
	}
	return items, nil
}

func (s *chatService) Authorize(ctx context.Context, principal domain.Principal, chatID uuid.UUID) (*domain.Chat, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return nil, s.notFoundOr("chat", "get chat", err, "chat_id", chatID)
	}
	if !chat.HasParticipant(principal.UserID) {
		return nil, apperrors.NotFound("chat")
	}
	return chat, nil
}

func (s *chatService) GetWithMessages(ctx context.Context, principal domain.Principal, chatID uuid.UUID) (*domain.ChatThread, error) {
	chat, err := s.Authorize(ctx, principal, chatID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	property, err := s.propertyRepo.GetByID(ctx, chat.PropertyID)
	if err != nil {
		return nil, s.notFoundOr("chat", "get property", err, "property_id", chat.PropertyID)
	}
	renter, err := s.userRepo.GetByID(ctx, chat.RenterID)
	if err != nil {
		return nil, s.storageError("get renter", err, "user_id", chat.RenterID)
	}
	owner, err := s.userRepo.GetByID(ctx, chat.OwnerID)
	if err != nil {
		return nil, s.storageError("get owner", err, "user_id", chat.OwnerID)
	}
	messages, err := s.chatRepo.Messages(ctx, chat.ID)
	if err != nil {
		return nil, s.storageError("get messages", err, "chat_id", chat.ID)
	}

	return &domain.ChatThread{
		Chat:     *chat,
		Property: property.Summary(),
		Renter:   renter.Contact(),
		Owner:    owner.Contact(),
		Messages: messages,
	}, nil
}
