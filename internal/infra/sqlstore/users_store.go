package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

type userRow struct {
	ID           string `db:"id"`
	Phone        string `db:"phone"`
	PasswordHash string `db:"password_hash"`
	BusinessID   string `db:"business_id"`
	CreatedAt    int64  `db:"created_at"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		BusinessID:   r.BusinessID,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// CreateUser inserts a user row. A taken phone yields *domain.ErrDuplicatePhone.
func (g *Gateway) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "SQL.CreateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", u.ID))

	return g.write(ctx, "create_user", func(ctx context.Context) error {
		_, err := g.db.ExecContext(ctx, g.rebind(
			`INSERT INTO users (id, phone, password_hash, business_id, created_at) VALUES (?, ?, ?, ?, ?)`),
			u.ID, u.Phone, u.PasswordHash, u.BusinessID, millis(u.CreatedAt),
		)
		if isUniqueViolation(err) {
			return &domain.ErrDuplicatePhone{Phone: u.Phone}
		}
		return err
	})
}

// GetUserByPhone returns (nil, nil) when no user has that phone.
func (g *Gateway) GetUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "SQL.GetUserByPhone")
	defer span.End()

	var user *domain.User
	err := g.read(ctx, "get_user_by_phone", func(ctx context.Context) error {
		var row userRow
		err := g.db.GetContext(ctx, &row, g.rebind(
			`SELECT id, phone, password_hash, business_id, created_at FROM users WHERE phone = ?`), phone)
		if errors.Is(err, sql.ErrNoRows) {
			user = nil
			return nil
		}
		if err != nil {
			return err
		}
		user = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
