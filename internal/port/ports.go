// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"io"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
)

// UserStore persists owner login identities.
type UserStore interface {
	// CreateUser inserts a user. A phone already present yields *domain.ErrDuplicatePhone.
	CreateUser(ctx context.Context, u *domain.User) error
	// GetUserByPhone returns (nil, nil) when no user has that phone.
	GetUserByPhone(ctx context.Context, phone string) (*domain.User, error)
}

// ProfileStore persists business profiles with their JSON-encoded
// catalog, FAQs and social links.
type ProfileStore interface {
	// CreateProfile inserts a profile. A taken slug yields *domain.ErrSlugCollision.
	CreateProfile(ctx context.Context, p *domain.BusinessProfile) error
	// UpdateProfile overwrites every mutable column of the row keyed by p.ID.
	UpdateProfile(ctx context.Context, p *domain.BusinessProfile) error
	GetProfileByID(ctx context.Context, id string) (*domain.BusinessProfile, error)
	GetProfileBySlug(ctx context.Context, slug string) (*domain.BusinessProfile, error)
	// DeleteProfile is only used to undo a half-finished signup.
	DeleteProfile(ctx context.Context, id string) error
}

// ChatStore persists chat sessions and their messages.
type ChatStore interface {
	// EnsureSession creates the session if absent and returns the stored row.
	EnsureSession(ctx context.Context, s *domain.ChatSession) (*domain.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)
	// ListSessions returns the profile's sessions, most recently active first,
	// with unread counts computed at query time.
	ListSessions(ctx context.Context, profileID string) ([]domain.ChatSession, error)
	// InsertMessage stores m. It reports false when a message with the same
	// id already exists, which makes client retries idempotent.
	InsertMessage(ctx context.Context, m *domain.Message) (bool, error)
	// ListMessages returns the session's messages, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
	// MarkRead flips unread customer messages sent at or before upTo and
	// returns how many changed.
	MarkRead(ctx context.Context, sessionID string, upTo time.Time) (int64, error)
	// TouchSession updates the session preview.
	TouchSession(ctx context.Context, sessionID, lastText string, at time.Time) error
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ReplyGenerator produces an auto-responder reply from a system prompt and
// the conversation so far (oldest first).
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, systemPrompt string, history []domain.Message) (string, error)
	Name() string
}

// ImageUploader stores an image with an external host and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	Name() string
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
