package service_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
)

// --- Mocks ---

// memStore is an in-memory UserStore, ProfileStore and ChatStore with the
// same uniqueness rules as the SQL gateway.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User // by phone
	profiles map[string]*domain.BusinessProfile
	sessions map[string]*domain.ChatSession
	messages map[string][]domain.Message

	// failCreateProfile forces CreateProfile to report a slug collision this
	// many times before succeeding.
	failCreateProfile int
	createProfileErr  error
	listMessagesErr   error
	createdSlugs      []string
	lastMarkReadUpTo  time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*domain.User{},
		profiles: map[string]*domain.BusinessProfile{},
		sessions: map[string]*domain.ChatSession{},
		messages: map[string][]domain.Message{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Phone]; ok {
		return &domain.ErrDuplicatePhone{Phone: u.Phone}
	}
	cp := *u
	m.users[u.Phone] = &cp
	return nil
}

func (m *memStore) GetUserByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[phone]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) slugTaken(slug, exceptID string) bool {
	for id, p := range m.profiles {
		if id != exceptID && p.Slug == slug {
			return true
		}
	}
	return false
}

func (m *memStore) CreateProfile(_ context.Context, p *domain.BusinessProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdSlugs = append(m.createdSlugs, p.Slug)
	if m.createProfileErr != nil {
		return m.createProfileErr
	}
	if m.failCreateProfile > 0 {
		m.failCreateProfile--
		return &domain.ErrSlugCollision{Slug: p.Slug}
	}
	if m.slugTaken(p.Slug, "") {
		return &domain.ErrSlugCollision{Slug: p.Slug}
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, p *domain.BusinessProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return &domain.ErrNotFound{Resource: "profile", ID: p.ID}
	}
	if m.slugTaken(p.Slug, p.ID) {
		return &domain.ErrSlugCollision{Slug: p.Slug}
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *memStore) GetProfileByID(_ context.Context, id string) (*domain.BusinessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProfileBySlug(_ context.Context, slug string) (*domain.BusinessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "profile", ID: slug}
}

func (m *memStore) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
	return nil
}

func (m *memStore) EnsureSession(_ context.Context, s *domain.ChatSession) (*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if !ok {
		cp := *s
		m.sessions[s.ID] = &cp
		existing = &cp
	} else if existing.ProfileID == s.ProfileID && existing.CustomerName == "" {
		existing.CustomerName = s.CustomerName
	}
	cp := *existing
	return &cp, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "chat session", ID: id}
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSessions(_ context.Context, profileID string) ([]domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatSession
	for _, s := range m.sessions {
		if s.ProfileID != profileID {
			continue
		}
		cp := *s
		for _, msg := range m.messages[s.ID] {
			if msg.Sender == domain.SenderCustomer && !msg.IsRead {
				cp.UnreadCount++
			}
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out, nil
}

func (m *memStore) InsertMessage(_ context.Context, msg *domain.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages[msg.SessionID] {
		if existing.ID == msg.ID {
			return false, nil
		}
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return true, nil
}

func (m *memStore) ListMessages(_ context.Context, sessionID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listMessagesErr != nil {
		return nil, m.listMessagesErr
	}
	out := append([]domain.Message(nil), m.messages[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, sessionID string, upTo time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMarkReadUpTo = upTo
	var n int64
	msgs := m.messages[sessionID]
	for i := range msgs {
		if msgs[i].Sender == domain.SenderCustomer && !msgs[i].IsRead && !msgs[i].Timestamp.After(upTo) {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) TouchSession(_ context.Context, sessionID, lastText string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || at.Before(s.LastActive) {
		return nil
	}
	s.LastText = lastText
	s.LastActive = at
	return nil
}

func (m *memStore) storedMessages(sessionID string) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages[sessionID]...)
}

type mockGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   chan struct{}
	prompts []string
	history [][]domain.Message
}

func (g *mockGenerator) Name() string { return "mock" }

func (g *mockGenerator) GenerateReply(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, systemPrompt)
	g.history = append(g.history, history)
	return g.reply, g.err
}

type mockUploader struct {
	url      string
	err      error
	received []byte
}

func (u *mockUploader) Name() string { return "mock" }

func (u *mockUploader) Upload(_ context.Context, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	u.received = b
	return u.url, u.err
}

var errBoom = errors.New("boom")
