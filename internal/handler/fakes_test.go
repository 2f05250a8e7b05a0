package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/service"
	apperrors "rental_marketplace/pkg/errors"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (f *fakeUsers) EnsureUser(_ context.Context, identity domain.Identity) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[identity.ExternalID]; ok {
		return u, nil
	}
	role := domain.RoleUser
	if identity.ExternalID == "admin" {
		role = domain.RoleAdmin
	}
	u := &domain.User{ID: uuid.New(), ExternalID: identity.ExternalID, Role: role, DisplayName: identity.DisplayName, ContactEmail: identity.Email}
	f.users[identity.ExternalID] = u
	return u, nil
}

func (f *fakeUsers) GetMe(_ context.Context, principal domain.Principal) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == principal.UserID {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (f *fakeUsers) ChangeUserRole(_ context.Context, principal domain.Principal, userID uuid.UUID, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.Validation("unknown role %q", role)
	}
	return &domain.User{ID: userID, Role: role}, nil
}

func (f *fakeUsers) Promote(context.Context, string) (*domain.User, error) {
	return nil, apperrors.NotFound("user")
}

// fakeProperties records the arguments of the last call and returns err when set.
type fakeProperties struct {
	err        error
	filter     domain.LiveFilter
	principal  domain.Principal
	input      domain.PropertyInput
	status     *domain.PropertyStatus
	decision   domain.Decision
	verifier   string
	deletedID  uuid.UUID
	properties []*domain.Property
}

func (f *fakeProperties) Create(_ context.Context, principal domain.Principal, input domain.PropertyInput) (*domain.Property, error) {
	f.principal, f.input = principal, input
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Property{ID: uuid.New(), OwnerID: principal.UserID, Title: input.Title, Status: domain.StatusPendingAdminReview}, nil
}

func (f *fakeProperties) GetByID(_ context.Context, id uuid.UUID, principal domain.Principal) (*domain.Property, error) {
	f.principal = principal
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Property{ID: id, Status: domain.StatusLive}, nil
}

func (f *fakeProperties) ListLive(_ context.Context, filter domain.LiveFilter) ([]*domain.Property, error) {
	f.filter = filter
	return f.properties, f.err
}

func (f *fakeProperties) ListMine(_ context.Context, principal domain.Principal) ([]*domain.Property, error) {
	f.principal = principal
	return f.properties, f.err
}

func (f *fakeProperties) ListForAdmin(_ context.Context, principal domain.Principal, status *domain.PropertyStatus) ([]*domain.Property, error) {
	f.principal, f.status = principal, status
	return f.properties, f.err
}

func (f *fakeProperties) QueueSummary(_ context.Context, principal domain.Principal) (domain.QueueSummary, error) {
	f.principal = principal
	return domain.QueueSummary{Pending: 2, Total: 2}, f.err
}

func (f *fakeProperties) AssignVerifier(_ context.Context, principal domain.Principal, id uuid.UUID, verifierName string, estimatedDays *int) (*domain.Property, error) {
	f.principal, f.verifier = principal, verifierName
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Property{ID: id, Status: domain.StatusVerificationInProgress, AssignedVerifier: &verifierName, EstimatedDays: estimatedDays}, nil
}

func (f *fakeProperties) Decide(_ context.Context, principal domain.Principal, id uuid.UUID, decision domain.Decision) (*domain.Property, error) {
	f.principal, f.decision = principal, decision
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Property{ID: id, Status: decision.Status}, nil
}

func (f *fakeProperties) Update(_ context.Context, principal domain.Principal, id uuid.UUID, _ domain.PropertyPatch) (*domain.Property, error) {
	f.principal = principal
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Property{ID: id}, nil
}

func (f *fakeProperties) Delete(_ context.Context, principal domain.Principal, id uuid.UUID) error {
	f.principal, f.deletedID = principal, id
	return f.err
}

type fakeChats struct {
	err  error
	chat *domain.Chat
	sent []string
}

func (f *fakeChats) GetOrCreate(_ context.Context, principal domain.Principal, propertyID uuid.UUID) (*domain.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.chat = &domain.Chat{ID: uuid.New(), PropertyID: propertyID, RenterID: principal.UserID, OwnerID: uuid.New()}
	return f.chat, nil
}

func (f *fakeChats) SendMessage(_ context.Context, principal domain.Principal, chatID uuid.UUID, text string) (*domain.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	text, err := domain.ValidateMessageText(text)
	if err != nil {
		return nil, err
	}
	f.sent = append(f.sent, text)
	return &domain.Message{ID: uuid.New(), Seq: int64(len(f.sent)), ChatID: chatID, SenderID: principal.UserID, Text: text, CreatedAt: time.Now()}, nil
}

func (f *fakeChats) ListMine(context.Context, domain.Principal) ([]domain.ChatListItem, error) {
	return []domain.ChatListItem{}, f.err
}

func (f *fakeChats) GetWithMessages(_ context.Context, principal domain.Principal, chatID uuid.UUID) (*domain.ChatThread, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatThread{Chat: domain.Chat{ID: chatID, RenterID: principal.UserID}}, nil
}

func (f *fakeChats) Authorize(_ context.Context, principal domain.Principal, chatID uuid.UUID) (*domain.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Chat{ID: chatID, RenterID: principal.UserID}, nil
}

type fakeRateLimit struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeRateLimit) Consume(_ context.Context, key string, limit int, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	if f.counts[key] > limit {
		return 0, apperrors.New(apperrors.ErrRateLimited, "too many requests")
	}
	return limit - f.counts[key], nil
}

// memSubscriber hands out one channel per topic.
type memSubscriber struct {
	mu     sync.Mutex
	topics map[string]chan notify.Envelope
}

func newMemSubscriber() *memSubscriber {
	return &memSubscriber{topics: make(map[string]chan notify.Envelope)}
}

func (s *memSubscriber) Subscribe(_ context.Context, topic string) (<-chan notify.Envelope, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan notify.Envelope, 4)
	s.topics[topic] = ch
	return ch, func() {}, nil
}

func (s *memSubscriber) channel(topic string) chan notify.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[topic]
}

var (
	_ service.UserService      = (*fakeUsers)(nil)
	_ service.PropertyService  = (*fakeProperties)(nil)
	_ service.ChatService      = (*fakeChats)(nil)
	_ service.RateLimitService = (*fakeRateLimit)(nil)
	_ notify.Subscriber        = (*memSubscriber)(nil)
)
