package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

type sessionRow struct {
	ID            string `db:"id"`
	ProfileID     string `db:"profile_id"`
	CustomerName  string `db:"customer_name"`
	CustomerPhone string `db:"customer_phone"`
	LastText      string `db:"last_text"`
	LastActive    int64  `db:"last_active"`
	UnreadCount   int    `db:"unread_count"`
}

func (r *sessionRow) toDomain() domain.ChatSession {
	return domain.ChatSession{
		ID:            r.ID,
		ProfileID:     r.ProfileID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		LastText:      r.LastText,
		LastActive:    fromMillis(r.LastActive),
		UnreadCount:   r.UnreadCount,
	}
}

type messageRow struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	Sender    string `db:"sender"`
	Text      string `db:"text"`
	SentAt    int64  `db:"sent_at"`
	IsRead    bool   `db:"is_read"`
	IsAI      bool   `db:"is_ai"`
}

func (r *messageRow) toDomain() domain.Message {
	return domain.Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Sender:    r.Sender,
		Text:      r.Text,
		Timestamp: fromMillis(r.SentAt),
		IsRead:    r.IsRead,
		IsAI:      r.IsAI,
	}
}

// EnsureSession inserts the session on first contact and fills in customer
// details that were missing. A session owned by another profile is left
// untouched; the caller compares ProfileID on the returned row.
func (g *Gateway) EnsureSession(ctx context.Context, s *domain.ChatSession) (*domain.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "SQL.EnsureSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.ID), attribute.String("profile.id", s.ProfileID))

	now := millis(s.LastActive)
	err := g.write(ctx, "ensure_session", func(ctx context.Context) error {
		_, err := g.db.ExecContext(ctx, g.rebind(
			`INSERT INTO chat_sessions (id, profile_id, customer_name, customer_phone, last_text, last_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				customer_name = CASE WHEN chat_sessions.customer_name = '' THEN excluded.customer_name ELSE chat_sessions.customer_name END,
				customer_phone = CASE WHEN chat_sessions.customer_phone = '' THEN excluded.customer_phone ELSE chat_sessions.customer_phone END
			WHERE chat_sessions.profile_id = excluded.profile_id`),
			s.ID, s.ProfileID, s.CustomerName, s.CustomerPhone, s.LastText, now, now,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g.GetSession(ctx, s.ID)
}

// GetSession returns *domain.ErrNotFound when the id is unknown. UnreadCount
// is not populated.
func (g *Gateway) GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "SQL.GetSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var session *domain.ChatSession
	err := g.read(ctx, "get_session", func(ctx context.Context) error {
		var row sessionRow
		err := g.db.GetContext(ctx, &row, g.rebind(
			`SELECT id, profile_id, customer_name, customer_phone, last_text, last_active, 0 AS unread_count
			FROM chat_sessions WHERE id = ?`), sessionID)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "chat session", ID: sessionID}
		}
		if err != nil {
			return err
		}
		s := row.toDomain()
		session = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns the profile's sessions, most recently active first.
// The unread count is the number of unread customer messages, joined in.
func (g *Gateway) ListSessions(ctx context.Context, profileID string) ([]domain.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "SQL.ListSessions")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	var sessions []domain.ChatSession
	err := g.read(ctx, "list_sessions", func(ctx context.Context) error {
		var rows []sessionRow
		err := g.db.SelectContext(ctx, &rows, g.rebind(
			`SELECT s.id, s.profile_id, s.customer_name, s.customer_phone, s.last_text, s.last_active,
				COALESCE(SUM(CASE WHEN m.sender = ? AND m.is_read = FALSE THEN 1 ELSE 0 END), 0) AS unread_count
			FROM chat_sessions s
			LEFT JOIN chat_messages m ON m.session_id = s.id
			WHERE s.profile_id = ?
			GROUP BY s.id, s.profile_id, s.customer_name, s.customer_phone, s.last_text, s.last_active
			ORDER BY s.last_active DESC, s.id`),
			domain.SenderCustomer, profileID,
		)
		if err != nil {
			return err
		}
		sessions = make([]domain.ChatSession, 0, len(rows))
		for i := range rows {
			sessions = append(sessions, rows[i].toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// InsertMessage stores m. It reports false if the id already exists.
func (g *Gateway) InsertMessage(ctx context.Context, m *domain.Message) (bool, error) {
	ctx, span := tracer.Start(ctx, "SQL.InsertMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", m.SessionID),
		attribute.String("message.sender", m.Sender),
	)

	var inserted bool
	err := g.write(ctx, "insert_message", func(ctx context.Context) error {
		res, err := g.db.ExecContext(ctx, g.rebind(
			`INSERT INTO chat_messages (id, session_id, sender, text, sent_at, is_read, is_ai)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING`),
			m.ID, m.SessionID, m.Sender, m.Text, millis(m.Timestamp), m.IsRead, m.IsAI,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ListMessages returns the session's messages ordered by timestamp, then id.
func (g *Gateway) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "SQL.ListMessages")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var messages []domain.Message
	err := g.read(ctx, "list_messages", func(ctx context.Context) error {
		var rows []messageRow
		err := g.db.SelectContext(ctx, &rows, g.rebind(
			`SELECT id, session_id, sender, text, sent_at, is_read, is_ai
			FROM chat_messages WHERE session_id = ?
			ORDER BY sent_at ASC, id ASC`), sessionID)
		if err != nil {
			return err
		}
		messages = make([]domain.Message, 0, len(rows))
		for i := range rows {
			messages = append(messages, rows[i].toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips unread customer messages sent at or before upTo. Messages
// already read are not touched, so each transitions at most once.
func (g *Gateway) MarkRead(ctx context.Context, sessionID string, upTo time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "SQL.MarkRead")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	var marked int64
	err := g.write(ctx, "mark_read", func(ctx context.Context) error {
		res, err := g.db.ExecContext(ctx, g.rebind(
			`UPDATE chat_messages SET is_read = TRUE
			WHERE session_id = ? AND sender = ? AND is_read = FALSE AND sent_at <= ?`),
			sessionID, domain.SenderCustomer, millis(upTo),
		)
		if err != nil {
			return err
		}
		marked, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// TouchSession updates the preview. An older timestamp never overwrites a
// newer one.
func (g *Gateway) TouchSession(ctx context.Context, sessionID, lastText string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "SQL.TouchSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	return g.write(ctx, "touch_session", func(ctx context.Context) error {
		_, err := g.db.ExecContext(ctx, g.rebind(
			`UPDATE chat_sessions SET last_text = ?, last_active = ? WHERE id = ? AND last_active <= ?`),
			lastText, millis(at), sessionID, millis(at),
		)
		return err
	})
}
