package sqlstore

import (
	"context"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"go.uber.org/zap"
)

// Timestamps are stored as BIGINT unix milliseconds and JSON documents as
// TEXT so the same DDL runs on Postgres and SQLite.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		phone         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		business_id   TEXT NOT NULL,
		created_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id               TEXT PRIMARY KEY,
		slug             TEXT,
		name             TEXT NOT NULL DEFAULT '',
		owner_name       TEXT NOT NULL DEFAULT '',
		description      TEXT,
		phone            TEXT NOT NULL DEFAULT '',
		country_code     TEXT NOT NULL DEFAULT '',
		logo             TEXT NOT NULL DEFAULT '',
		social_links     TEXT NOT NULL DEFAULT '{}',
		products         TEXT NOT NULL DEFAULT '[]',
		faqs             TEXT NOT NULL DEFAULT '[]',
		currency         TEXT NOT NULL DEFAULT '',
		return_policy    TEXT NOT NULL DEFAULT '',
		delivery_policy  TEXT NOT NULL DEFAULT '',
		ai_enabled       BOOLEAN NOT NULL DEFAULT FALSE,
		ai_business_info TEXT NOT NULL DEFAULT '',
		created_at       BIGINT NOT NULL,
		updated_at       BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id             TEXT PRIMARY KEY,
		profile_id     TEXT NOT NULL,
		customer_name  TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		last_text      TEXT NOT NULL DEFAULT '',
		last_active    BIGINT NOT NULL,
		created_at     BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_profile ON chat_sessions (profile_id, last_active)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sender     TEXT NOT NULL,
		text       TEXT NOT NULL,
		sent_at    BIGINT NOT NULL,
		is_read    BOOLEAN NOT NULL DEFAULT FALSE,
		is_ai      BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, sent_at)`,
}

// Tables created before slugs existed get the column here. SQLite has no
// ADD COLUMN IF NOT EXISTS, so this is allowed to fail.
const addSlugColumn = `ALTER TABLE profiles ADD COLUMN IF NOT EXISTS slug TEXT`

const createSlugIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_slug ON profiles (slug)`

// Bootstrap creates the schema if missing. It is idempotent and safe to run
// from several processes at once. Failures return *domain.ErrBootstrap.
func (g *Gateway) Bootstrap(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SQL.Bootstrap")
	defer span.End()

	for _, stmt := range createStatements {
		if err := g.exec(ctx, stmt); err != nil {
			return &domain.ErrBootstrap{Statement: firstLine(stmt), Err: err}
		}
	}

	if err := g.exec(ctx, addSlugColumn); err != nil {
		g.logger.Warn("schema: slug column migration skipped",
			zap.String("driver", g.driver),
			zap.Error(err),
		)
	}

	if err := g.exec(ctx, createSlugIndex); err != nil {
		return &domain.ErrBootstrap{Statement: createSlugIndex, Err: err}
	}

	g.logger.Info("schema bootstrap complete", zap.String("driver", g.driver))
	return nil
}

func (g *Gateway) exec(ctx context.Context, stmt string) error {
	if _, err := g.db.ExecContext(ctx, stmt); err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return err
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
