package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var chatTracer = otel.Tracer("service/chat")

const maxMessageLength = 4000

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ProfileResolver looks up the business behind a public chat link.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, slugOrID string) (*domain.BusinessProfile, error)
}

// ChatService serves both sides of a conversation over one store: owners
// list, read and answer sessions; customers fetch and send on a public link.
type ChatService struct {
	store     port.ChatStore
	profiles  ProfileResolver
	responder *AutoResponder
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewChatService creates a chat service. responder may be nil, which
// disables AI replies.
func NewChatService(store port.ChatStore, profiles ProfileResolver, responder *AutoResponder, metrics *observability.Metrics, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:     store,
		profiles:  profiles,
		responder: responder,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================
// Owner side
// ============================================================

// ListSessions returns the owner's sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, profileID string) ([]domain.ChatSession, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ListSessions")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	sessions, err := s.store.ListSessions(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListMessages returns the session's messages oldest first and marks every
// returned customer message as read.
func (s *ChatService) ListMessages(ctx context.Context, profileID, sessionID string) ([]domain.Message, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.ListMessages")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID), attribute.String("session.id", sessionID))

	if _, err := s.ownedSession(ctx, profileID, sessionID); err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	// Mark only what the owner is about to see; newer messages stay unread.
	upTo := msgs[len(msgs)-1].Timestamp
	marked, err := s.store.MarkRead(ctx, sessionID, upTo)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	s.metrics.AddMarkedRead(marked)

	for i := range msgs {
		if msgs[i].Sender == domain.SenderCustomer {
			msgs[i].IsRead = true
		}
	}
	return msgs, nil
}

// MarkRead marks every unread customer message in the session as read.
func (s *ChatService) MarkRead(ctx context.Context, profileID, sessionID string) (int64, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.MarkRead")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if _, err := s.ownedSession(ctx, profileID, sessionID); err != nil {
		return 0, err
	}

	marked, err := s.store.MarkRead(ctx, sessionID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	s.metrics.AddMarkedRead(marked)
	return marked, nil
}

// Reply appends an owner message and updates the session preview. The two
// writes are independent; a failed preview update is logged, not returned.
func (s *ChatService) Reply(ctx context.Context, profileID, sessionID, text string) (*domain.Message, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.Reply")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	text, err := validateText(text)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedSession(ctx, profileID, sessionID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    domain.SenderOwner,
		Text:      text,
		Timestamp: now,
		IsRead:    true,
	}
	if _, err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert reply: %w", err)
	}
	s.metrics.IncrMessage(domain.SenderOwner)

	if err := s.store.TouchSession(ctx, sessionID, text, now); err != nil {
		s.logger.Warn("reply: preview update failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return msg, nil
}

// ownedSession hides sessions of other businesses behind ErrNotFound.
func (s *ChatService) ownedSession(ctx context.Context, profileID, sessionID string) (*domain.ChatSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.ProfileID != profileID {
		return nil, &domain.ErrNotFound{Resource: "chat session", ID: sessionID}
	}
	return session, nil
}

// ============================================================
// Customer side
// ============================================================

// FetchCustomerMessages returns the conversation for a public chat link.
// A session with no stored messages yields a single synthesized greeting
// that is never persisted.
func (s *ChatService) FetchCustomerMessages(ctx context.Context, slugOrID, sessionID string) ([]domain.Message, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.FetchCustomerMessages")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	profile, err := s.profiles.ResolveProfile(ctx, slugOrID)
	if err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, sessionID)
	var nf *domain.ErrNotFound
	switch {
	case errors.As(err, &nf):
		return []domain.Message{greeting(profile, sessionID, s.now().UTC())}, nil
	case err != nil:
		return nil, fmt.Errorf("get session: %w", err)
	case session.ProfileID != profile.ID:
		return nil, &domain.ErrConflict{Message: "session belongs to another business"}
	}

	msgs, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return []domain.Message{greeting(profile, sessionID, session.LastActive)}, nil
	}
	return msgs, nil
}

// CustomerSend stores a customer message, creating the session on first
// contact. A client-supplied message id makes retries idempotent.
func (s *ChatService) CustomerSend(ctx context.Context, slugOrID, sessionID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	ctx, span := chatTracer.Start(ctx, "ChatService.CustomerSend")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	text, err := validateText(req.Text)
	if err != nil {
		return nil, err
	}
	msgID := uuid.NewString()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "id", Message: "id must be a UUID"}
		}
		msgID = parsed.String()
	}

	profile, err := s.profiles.ResolveProfile(ctx, slugOrID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session, err := s.store.EnsureSession(ctx, &domain.ChatSession{
		ID:            sessionID,
		ProfileID:     profile.ID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		LastActive:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	if session.ProfileID != profile.ID {
		s.logger.Warn("send: session bound to another profile",
			zap.String("session_id", sessionID),
			zap.String("profile_id", profile.ID),
		)
		return nil, &domain.ErrConflict{Message: "session belongs to another business"}
	}

	msg := &domain.Message{
		ID:        msgID,
		SessionID: sessionID,
		Sender:    domain.SenderCustomer,
		Text:      text,
		Timestamp: now,
	}
	inserted, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if !inserted {
		s.logger.Debug("send: duplicate message id, treating as retry", zap.String("message_id", msgID))
		return msg, nil
	}
	s.metrics.IncrMessage(domain.SenderCustomer)

	if err := s.store.TouchSession(ctx, sessionID, text, now); err != nil {
		s.logger.Warn("send: preview update failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	if profile.AIEnabled && s.responder != nil {
		s.responder.Trigger(profile, sessionID)
	}
	return msg, nil
}

// Wait blocks until background AI replies have finished.
func (s *ChatService) Wait() {
	if s.responder != nil {
		s.responder.Wait()
	}
}

func greeting(profile *domain.BusinessProfile, sessionID string, at time.Time) domain.Message {
	name := profile.DisplayName()
	text := "Hello! How can we help you today?"
	if name != "" {
		text = fmt.Sprintf("Hello! Welcome to %s. How can we help you today?", name)
	}
	return domain.Message{
		ID:        domain.GreetingID,
		SessionID: sessionID,
		Sender:    domain.SenderOwner,
		Text:      text,
		Timestamp: at.UTC(),
		IsRead:    true,
	}
}

func validateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return &domain.ErrValidation{Field: "sessionId", Message: "session id must be 1-128 characters of A-Z, a-z, 0-9, _ or -"}
	}
	return nil
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &domain.ErrValidation{Field: "text", Message: "message text is required"}
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return "", &domain.ErrValidation{Field: "text", Message: fmt.Sprintf("message text exceeds %d characters", maxMessageLength)}
	}
	return text, nil
}
