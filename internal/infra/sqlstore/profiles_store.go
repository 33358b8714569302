package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"go.opentelemetry.io/otel/attribute"
)

const profileColumns = `id, slug, name, owner_name, description, phone, country_code, logo,
	social_links, products, faqs, currency, return_policy, delivery_policy,
	ai_enabled, ai_business_info, created_at, updated_at`

// profileRow mirrors the profiles table. slug is nullable because legacy
// rows predate the column.
type profileRow struct {
	ID             string         `db:"id"`
	Slug           sql.NullString `db:"slug"`
	Name           string         `db:"name"`
	OwnerName      string         `db:"owner_name"`
	Description    sql.NullString `db:"description"`
	Phone          string         `db:"phone"`
	CountryCode    string         `db:"country_code"`
	Logo           string         `db:"logo"`
	SocialLinks    string         `db:"social_links"`
	Products       string         `db:"products"`
	FAQs           string         `db:"faqs"`
	Currency       string         `db:"currency"`
	ReturnPolicy   string         `db:"return_policy"`
	DeliveryPolicy string         `db:"delivery_policy"`
	AIEnabled      bool           `db:"ai_enabled"`
	AIBusinessInfo string         `db:"ai_business_info"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func (r *profileRow) toDomain() (*domain.BusinessProfile, error) {
	p := &domain.BusinessProfile{
		ID:             r.ID,
		Slug:           r.Slug.String,
		Name:           r.Name,
		OwnerName:      r.OwnerName,
		Description:    r.Description.String,
		Phone:          r.Phone,
		CountryCode:    r.CountryCode,
		Logo:           r.Logo,
		SocialLinks:    map[string]string{},
		Products:       []domain.Product{},
		FAQs:           []domain.FAQ{},
		Currency:       r.Currency,
		ReturnPolicy:   r.ReturnPolicy,
		DeliveryPolicy: r.DeliveryPolicy,
		AIEnabled:      r.AIEnabled,
		AIBusinessInfo: r.AIBusinessInfo,
		CreatedAt:      fromMillis(r.CreatedAt),
		UpdatedAt:      fromMillis(r.UpdatedAt),
	}
	if err := decodeJSON(r.SocialLinks, &p.SocialLinks); err != nil {
		return nil, fmt.Errorf("decode social_links: %w", err)
	}
	if err := decodeJSON(r.Products, &p.Products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if err := decodeJSON(r.FAQs, &p.FAQs); err != nil {
		return nil, fmt.Errorf("decode faqs: %w", err)
	}
	return p, nil
}

func newProfileRow(p *domain.BusinessProfile) (*profileRow, error) {
	social, err := encodeJSON(p.SocialLinks, "{}")
	if err != nil {
		return nil, fmt.Errorf("encode social_links: %w", err)
	}
	products, err := encodeJSON(p.Products, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	faqs, err := encodeJSON(p.FAQs, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode faqs: %w", err)
	}
	return &profileRow{
		ID:             p.ID,
		Slug:           sql.NullString{String: p.Slug, Valid: p.Slug != ""},
		Name:           p.Name,
		OwnerName:      p.OwnerName,
		Description:    sql.NullString{String: p.Description, Valid: p.Description != ""},
		Phone:          p.Phone,
		CountryCode:    p.CountryCode,
		Logo:           p.Logo,
		SocialLinks:    social,
		Products:       products,
		FAQs:           faqs,
		Currency:       p.Currency,
		ReturnPolicy:   p.ReturnPolicy,
		DeliveryPolicy: p.DeliveryPolicy,
		AIEnabled:      p.AIEnabled,
		AIBusinessInfo: p.AIBusinessInfo,
		CreatedAt:      millis(p.CreatedAt),
		UpdatedAt:      millis(p.UpdatedAt),
	}, nil
}

// CreateProfile inserts a profile. A taken slug yields *domain.ErrSlugCollision.
func (g *Gateway) CreateProfile(ctx context.Context, p *domain.BusinessProfile) error {
	ctx, span := tracer.Start(ctx, "SQL.CreateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", p.ID), attribute.String("profile.slug", p.Slug))

	row, err := newProfileRow(p)
	if err != nil {
		return err
	}

	return g.write(ctx, "create_profile", func(ctx context.Context) error {
		_, err := g.db.NamedExecContext(ctx,
			`INSERT INTO profiles (`+profileColumns+`) VALUES (
				:id, :slug, :name, :owner_name, :description, :phone, :country_code, :logo,
				:social_links, :products, :faqs, :currency, :return_policy, :delivery_policy,
				:ai_enabled, :ai_business_info, :created_at, :updated_at)`,
			row,
		)
		if isUniqueViolation(err) {
			return &domain.ErrSlugCollision{Slug: p.Slug}
		}
		return err
	})
}

// UpdateProfile overwrites the row keyed by p.ID. created_at is preserved.
func (g *Gateway) UpdateProfile(ctx context.Context, p *domain.BusinessProfile) error {
	ctx, span := tracer.Start(ctx, "SQL.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", p.ID), attribute.String("profile.slug", p.Slug))

	row, err := newProfileRow(p)
	if err != nil {
		return err
	}

	return g.write(ctx, "update_profile", func(ctx context.Context) error {
		res, err := g.db.NamedExecContext(ctx,
			`UPDATE profiles SET
				slug = :slug, name = :name, owner_name = :owner_name, description = :description,
				phone = :phone, country_code = :country_code, logo = :logo,
				social_links = :social_links, products = :products, faqs = :faqs,
				currency = :currency, return_policy = :return_policy, delivery_policy = :delivery_policy,
				ai_enabled = :ai_enabled, ai_business_info = :ai_business_info, updated_at = :updated_at
			WHERE id = :id`,
			row,
		)
		if isUniqueViolation(err) {
			return &domain.ErrSlugCollision{Slug: p.Slug}
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: "profile", ID: p.ID}
		}
		return nil
	})
}

// GetProfileByID returns *domain.ErrNotFound when the id is unknown.
func (g *Gateway) GetProfileByID(ctx context.Context, id string) (*domain.BusinessProfile, error) {
	ctx, span := tracer.Start(ctx, "SQL.GetProfileByID")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", id))

	return g.getProfile(ctx, "get_profile_by_id", "id", id)
}

// GetProfileBySlug returns *domain.ErrNotFound when the slug is unknown.
func (g *Gateway) GetProfileBySlug(ctx context.Context, slug string) (*domain.BusinessProfile, error) {
	ctx, span := tracer.Start(ctx, "SQL.GetProfileBySlug")
	defer span.End()
	span.SetAttributes(attribute.String("profile.slug", slug))

	return g.getProfile(ctx, "get_profile_by_slug", "slug", slug)
}

// column is one of the fixed names above, never user input.
func (g *Gateway) getProfile(ctx context.Context, op, column, value string) (*domain.BusinessProfile, error) {
	var profile *domain.BusinessProfile
	err := g.read(ctx, op, func(ctx context.Context) error {
		var row profileRow
		err := g.db.GetContext(ctx, &row, g.rebind(
			`SELECT `+profileColumns+` FROM profiles WHERE `+column+` = ?`), value)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "profile", ID: value}
		}
		if err != nil {
			return err
		}
		profile, err = row.toDomain()
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// DeleteProfile removes a profile row.
func (g *Gateway) DeleteProfile(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SQL.DeleteProfile")
	defer span.End()

	return g.write(ctx, "delete_profile", func(ctx context.Context) error {
		_, err := g.db.ExecContext(ctx, g.rebind(`DELETE FROM profiles WHERE id = ?`), id)
		return err
	})
}

func encodeJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func decodeJSON(s string, dst any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
