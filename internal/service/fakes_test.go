package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/notify"
	"rental_marketplace/internal/repository"
	"rental_marketplace/pkg/logger"
)

// memStore is an in-memory stand-in for Postgres shared by the fake repositories.
type memStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*domain.User
	properties map[uuid.UUID]*domain.Property
	chats      map[uuid.UUID]*domain.Chat
	messages   map[uuid.UUID][]domain.Message
	audit      []domain.AuditLog
	counters   map[string]int64
	seq        int64
	// fail, when set, is returned by every repository call.
	fail error
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[uuid.UUID]*domain.User),
		properties: make(map[uuid.UUID]*domain.Property),
		chats:      make(map[uuid.UUID]*domain.Chat),
		messages:   make(map[uuid.UUID][]domain.Message),
		counters:   make(map[string]int64),
	}
}

func (m *memStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		User:      fakeUsers{m},
		Property:  fakeProperties{m},
		Chat:      fakeChats{m},
		Audit:     fakeAudit{m},
		RateLimit: fakeRateLimit{m},
	}
}

func copyProperty(p *domain.Property) *domain.Property {
	c := *p
	c.Amenities = append([]string{}, p.Amenities...)
	c.OwnerImages = append([]string{}, p.OwnerImages...)
	c.VerifiedImages = append([]string{}, p.VerifiedImages...)
	return &c
}

type fakeUsers struct{ m *memStore }

func (f fakeUsers) Upsert(_ context.Context, identity domain.Identity) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	now := time.Now().UTC()
	for _, u := range f.m.users {
		if u.ExternalID == identity.ExternalID {
			u.DisplayName = identity.DisplayName
			u.ContactEmail = strings.ToLower(identity.Email)
			if identity.AvatarURL != nil {
				u.AvatarURL = identity.AvatarURL
			}
			u.UpdatedAt = now
			c := *u
			return &c, nil
		}
	}
	u := &domain.User{
		ID:           uuid.New(),
		ExternalID:   identity.ExternalID,
		Role:         domain.RoleUser,
		DisplayName:  identity.DisplayName,
		ContactEmail: strings.ToLower(identity.Email),
		AvatarURL:    identity.AvatarURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.m.users[u.ID] = u
	c := *u
	return &c, nil
}

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	u, ok := f.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f fakeUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	for _, u := range f.m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeUsers) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	return f.find(func(u *domain.User) bool { return u.ExternalID == externalID })
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return f.find(func(u *domain.User) bool { return u.ContactEmail == email })
}

func (f fakeUsers) UpdateRole(_ context.Context, id uuid.UUID, role domain.Role) (*domain.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	u, ok := f.m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Role = role
	c := *u
	return &c, nil
}

type fakeProperties struct{ m *memStore }

func (f fakeProperties) Create(_ context.Context, p *domain.Property) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return f.m.fail
	}
	if _, ok := f.m.properties[p.ID]; ok {
		return repository.ErrDuplicate
	}
	f.m.properties[p.ID] = copyProperty(p)
	return nil
}

func (f fakeProperties) GetByID(_ context.Context, id uuid.UUID) (*domain.Property, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	p, ok := f.m.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyProperty(p), nil
}

func (f fakeProperties) Update(_ context.Context, id uuid.UUID, patch domain.PropertyPatch, at time.Time) (*domain.Property, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	stored, ok := f.m.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(stored)
	stored.UpdatedAt = at
	return copyProperty(stored), nil
}

func (f fakeProperties) transition(id uuid.UUID, from []domain.PropertyStatus, apply func(*domain.Property)) (*domain.Property, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	p, ok := f.m.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if p.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, repository.ErrConflict
	}
	apply(p)
	return copyProperty(p), nil
}

func (f fakeProperties) AssignVerifier(_ context.Context, id uuid.UUID, from []domain.PropertyStatus, verifier string, estimatedDays *int, at time.Time) (*domain.Property, error) {
	return f.transition(id, from, func(p *domain.Property) {
		p.Status = domain.StatusVerificationInProgress
		p.AssignedVerifier = &verifier
		p.EstimatedDays = estimatedDays
		p.VerificationStartDate = &at
		p.UpdatedAt = at
	})
}

func (f fakeProperties) Decide(_ context.Context, id uuid.UUID, from []domain.PropertyStatus, d domain.Decision, at time.Time) (*domain.Property, error) {
	return f.transition(id, from, func(p *domain.Property) {
		p.Status = d.Status
		p.VerificationEndDate = &at
		p.UpdatedAt = at
		if d.Status == domain.StatusLive {
			p.VerifiedImages = append([]string{}, d.VerifiedImages...)
			p.RejectionReason = nil
		} else {
			reason := d.RejectionReason
			p.RejectionReason = &reason
		}
		if d.AdminNotes != nil {
			p.AdminNotes = d.AdminNotes
		}
	})
}

func (f fakeProperties) Delete(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	if _, ok := f.m.properties[id]; !ok {
		return nil, repository.ErrNotFound
	}
	seen := make(map[uuid.UUID]struct{})
	var participants []uuid.UUID
	for chatID, c := range f.m.chats {
		if c.PropertyID != id {
			continue
		}
		for _, u := range []uuid.UUID{c.RenterID, c.OwnerID} {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				participants = append(participants, u)
			}
		}
		delete(f.m.chats, chatID)
		delete(f.m.messages, chatID)
	}
	delete(f.m.properties, id)
	return participants, nil
}

func (f fakeProperties) list(match func(*domain.Property) bool) ([]*domain.Property, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	out := make([]*domain.Property, 0)
	for _, p := range f.m.properties {
		if match(p) {
			out = append(out, copyProperty(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f fakeProperties) ListLive(_ context.Context, filter domain.LiveFilter) ([]*domain.Property, error) {
	search := strings.ToLower(filter.Search)
	return f.list(func(p *domain.Property) bool {
		if p.Status != domain.StatusLive {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) &&
			!strings.Contains(strings.ToLower(p.Address), search) {
			return false
		}
		if filter.MinRent != nil && p.Rent < *filter.MinRent {
			return false
		}
		if filter.MaxRent != nil && p.Rent > *filter.MaxRent {
			return false
		}
		if filter.PropertyType != nil && p.PropertyType != *filter.PropertyType {
			return false
		}
		for _, want := range filter.Amenities {
			found := false
			for _, have := range p.Amenities {
				if have == want {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		return true
	})
}

func (f fakeProperties) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Property, error) {
	return f.list(func(p *domain.Property) bool { return p.OwnerID == ownerID })
}

func (f fakeProperties) List(_ context.Context, status *domain.PropertyStatus) ([]*domain.Property, error) {
	return f.list(func(p *domain.Property) bool { return status == nil || p.Status == *status })
}

func (f fakeProperties) CountByStatus(_ context.Context) (map[domain.PropertyStatus]int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	counts := make(map[domain.PropertyStatus]int)
	for _, p := range f.m.properties {
		counts[p.Status]++
	}
	return counts, nil
}

type fakeChats struct{ m *memStore }

func (f fakeChats) GetByID(_ context.Context, id uuid.UUID) (*domain.Chat, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	c, ok := f.m.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (f fakeChats) GetByRenterAndProperty(_ context.Context, renterID, propertyID uuid.UUID) (*domain.Chat, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	for _, c := range f.m.chats {
		if c.RenterID == renterID && c.PropertyID == propertyID {
			cc := *c
			return &cc, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create enforces the (renter, property) unique index.
func (f fakeChats) Create(_ context.Context, chat *domain.Chat) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return f.m.fail
	}
	if _, ok := f.m.properties[chat.PropertyID]; !ok {
		return repository.ErrNotFound
	}
	for _, c := range f.m.chats {
		if c.RenterID == chat.RenterID && c.PropertyID == chat.PropertyID {
			return repository.ErrDuplicate
		}
	}
	cc := *chat
	f.m.chats[chat.ID] = &cc
	return nil
}

func (f fakeChats) AppendMessage(_ context.Context, message *domain.Message) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return f.m.fail
	}
	c, ok := f.m.chats[message.ChatID]
	if !ok {
		return repository.ErrNotFound
	}
	f.m.seq++
	message.Seq = f.m.seq
	f.m.messages[c.ID] = append(f.m.messages[c.ID], *message)
	if message.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = message.CreatedAt
	}
	return nil
}

func sortMessages(messages []domain.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].Seq < messages[j].Seq
	})
}

func (f fakeChats) Messages(_ context.Context, chatID uuid.UUID) ([]domain.Message, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	out := append([]domain.Message{}, f.m.messages[chatID]...)
	sortMessages(out)
	return out, nil
}

func (f fakeChats) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.ChatListItem, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return nil, f.m.fail
	}
	items := make([]domain.ChatListItem, 0)
	for _, c := range f.m.chats {
		if !c.HasParticipant(userID) {
			continue
		}
		item := domain.ChatListItem{
			ID:            c.ID,
			UpdatedAt:     c.UpdatedAt,
			ViewerIsOwner: c.OwnerID == userID,
		}
		if p, ok := f.m.properties[c.PropertyID]; ok {
			item.Property = p.Summary()
		}
		if u, ok := f.m.users[c.OtherParticipant(userID)]; ok {
			item.Counterpart = u.Profile()
		}
		if msgs := append([]domain.Message{}, f.m.messages[c.ID]...); len(msgs) > 0 {
			sortMessages(msgs)
			last := msgs[len(msgs)-1]
			item.LastMessage = &last
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

type fakeAudit struct{ m *memStore }

func (f fakeAudit) CreateLog(_ context.Context, log *domain.AuditLog) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return f.m.fail
	}
	log.ID = int64(len(f.m.audit) + 1)
	f.m.audit = append(f.m.audit, *log)
	return nil
}

type fakeRateLimit struct{ m *memStore }

func (f fakeRateLimit) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.fail != nil {
		return 0, f.m.fail
	}
	f.m.counters[key]++
	return f.m.counters[key], nil
}

// stepClock advances one second on every reading so timestamps are distinct.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store    *memStore
	signals  *notify.Recorder
	clock    *stepClock
	services *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	signals := notify.NewRecorder()
	clock := &stepClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	services := NewServices(store.repositories(), signals, Options{
		QueryTimeout: time.Second,
		Now:          clock.Now,
	}, logger.Nop())
	return &fixture{store: store, signals: signals, clock: clock, services: services}
}

func (f *fixture) newUser(t *testing.T, name string, role domain.Role) domain.Principal {
	t.Helper()
	user, err := f.services.User.EnsureUser(context.Background(), domain.Identity{
		ExternalID:  "ext-" + name,
		Email:       name + "@example.test",
		DisplayName: name,
	})
	require.NoError(t, err)
	if role == domain.RoleAdmin {
		user, err = f.services.User.Promote(context.Background(), user.ExternalID)
		require.NoError(t, err)
	}
	return user.Principal()
}

func validInput() domain.PropertyInput {
	return domain.PropertyInput{
		Title:        "Bright two-bed flat",
		Description:  "Close to the park",
		Address:      "12 Elm Street",
		Rent:         1200,
		PropertyType: domain.PropertyTypeFlat,
		Amenities:    []string{"wifi", "parking"},
		OwnerImages:  []string{"http://img/owner-1.jpg"},
		OwnerContact: "555-0100",
	}
}

func (f *fixture) createProperty(t *testing.T, owner domain.Principal, input domain.PropertyInput) *domain.Property {
	t.Helper()
	p, err := f.services.Property.Create(context.Background(), owner, input)
	require.NoError(t, err)
	return p
}

// liveProperty creates a listing and drives it through review to LIVE.
func (f *fixture) liveProperty(t *testing.T, owner, admin domain.Principal, input domain.PropertyInput) *domain.Property {
	t.Helper()
	ctx := context.Background()
	p := f.createProperty(t, owner, input)
	_, err := f.services.Property.AssignVerifier(ctx, admin, p.ID, "Jane", nil)
	require.NoError(t, err)
	p, err = f.services.Property.Decide(ctx, admin, p.ID, domain.Decision{
		Status:         domain.StatusLive,
		VerifiedImages: []string{"http://img/1.jpg"},
	})
	require.NoError(t, err)
	return p
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
