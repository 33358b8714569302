// Package service implements IdentityService (owner signup, login, JWT
// validation and business profiles) and ChatService, which drives both sides
// of the chat.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"
	"github.com/boddenberg/bazchat-go/internal/infra/observability"
	"github.com/boddenberg/bazchat-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

var identityTracer = otel.Tracer("service/identity")

const (
	minPasswordLength = 6
	profileCacheName  = "profile"
)

// IdentityService orchestrates signup, login and profile management.
type IdentityService struct {
	users     port.UserStore
	profiles  port.ProfileStore
	cache     port.Cache[*domain.BusinessProfile]
	group     singleflight.Group
	jwtSecret []byte
	accessTTL time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewIdentityService creates a new identity service.
func NewIdentityService(
	users port.UserStore,
	profiles port.ProfileStore,
	cache port.Cache[*domain.BusinessProfile],
	jwtSecret string,
	accessTTL time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		users:     users,
		profiles:  profiles,
		cache:     cache,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================
// Register: POST /v1/auth/register
// ============================================================

func (s *IdentityService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := identityTracer.Start(ctx, "IdentityService.Register")
	defer span.End()

	phone := strings.TrimSpace(req.Phone)
	fullName := strings.TrimSpace(req.FullName)
	if phone == "" {
		return nil, &domain.ErrValidation{Field: "phone", Message: "phone is required"}
	}
	if len(req.Password) < minPasswordLength {
		return nil, &domain.ErrValidation{Field: "password", Message: fmt.Sprintf("password must have at least %d characters", minPasswordLength)}
	}

	existing, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if existing != nil {
		s.metrics.IncrSignup("duplicate_phone")
		return nil, &domain.ErrDuplicatePhone{Phone: phone}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	profile := &domain.BusinessProfile{
		ID:          uuid.NewString(),
		Slug:        Slugify(fullName),
		Name:        fullName,
		OwnerName:   fullName,
		Phone:       phone,
		CountryCode: strings.TrimSpace(req.CountryCode),
		SocialLinks: map[string]string{},
		Products:    []domain.Product{},
		FAQs:        []domain.FAQ{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	span.SetAttributes(attribute.String("profile.id", profile.ID), attribute.String("profile.slug", profile.Slug))

	if err := s.createProfileWithSlug(ctx, profile); err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Phone:        phone,
		PasswordHash: string(hash),
		BusinessID:   profile.ID,
		CreatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race on the phone: drop the orphaned profile.
		if delErr := s.profiles.DeleteProfile(ctx, profile.ID); delErr != nil {
			s.logger.Warn("register: failed to remove orphaned profile",
				zap.String("profile_id", profile.ID),
				zap.Error(delErr),
			)
		}
		var dup *domain.ErrDuplicatePhone
		if errors.As(err, &dup) {
			s.metrics.IncrSignup("duplicate_phone")
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncrSignup("created")
	s.logger.Info("owner registered",
		zap.String("user_id", user.ID),
		zap.String("profile_id", profile.ID),
		zap.String("slug", profile.Slug),
	)

	return s.authResponse(user, profile)
}

// createProfileWithSlug inserts the profile, retrying exactly once with a
// random suffix when the slug is taken.
func (s *IdentityService) createProfileWithSlug(ctx context.Context, profile *domain.BusinessProfile) error {
	err := s.profiles.CreateProfile(ctx, profile)
	var collision *domain.ErrSlugCollision
	if !errors.As(err, &collision) {
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	}

	candidate := profile.Slug
	profile.Slug = withSuffix(candidate)
	s.metrics.IncrSignup("slug_retry")
	s.logger.Info("register: slug taken, retrying with suffix",
		zap.String("slug", candidate),
		zap.String("retry_slug", profile.Slug),
	)

	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		if errors.As(err, &collision) {
			s.metrics.IncrSignup("slug_collision")
			return err
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// ============================================================
// Login: POST /v1/auth/login
// ============================================================

func (s *IdentityService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := identityTracer.Start(ctx, "IdentityService.Login")
	defer span.End()

	phone := strings.TrimSpace(req.Phone)
	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &domain.ErrInvalidCredentials{}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: password mismatch", zap.String("user_id", user.ID))
		return nil, &domain.ErrInvalidCredentials{}
	}

	profile, err := s.profiles.GetProfileByID(ctx, user.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	s.logger.Info("owner logged in", zap.String("user_id", user.ID), zap.String("profile_id", profile.ID))
	return s.authResponse(user, profile)
}

// ============================================================
// Profiles
// ============================================================

// GetProfile returns the owner's own profile.
func (s *IdentityService) GetProfile(ctx context.Context, profileID string) (*domain.BusinessProfile, error) {
	ctx, span := identityTracer.Start(ctx, "IdentityService.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	profile, err := s.profiles.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// SaveProfile replaces every editable field of the owner's profile. The
// slug is normalized to [a-z0-9_-]; an empty result is rejected.
func (s *IdentityService) SaveProfile(ctx context.Context, profileID string, in *domain.BusinessProfile) (*domain.BusinessProfile, error) {
	ctx, span := identityTracer.Start(ctx, "IdentityService.SaveProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	slug := NormalizeSlug(in.Slug)
	if slug == "" {
		return nil, &domain.ErrValidation{Field: "slug", Message: "slug must contain at least one of a-z, 0-9, _ or -"}
	}
	products := make([]domain.Product, 0, len(in.Products))
	for i, p := range in.Products {
		if p.Price < 0 {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("products[%d].price", i), Message: "price must not be negative"}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		products = append(products, p)
	}

	current, err := s.profiles.GetProfileByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	updated := *in
	updated.ID = profileID
	updated.Slug = slug
	updated.Products = products
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = s.now().UTC()
	if updated.SocialLinks == nil {
		updated.SocialLinks = map[string]string{}
	}
	if updated.FAQs == nil {
		updated.FAQs = []domain.FAQ{}
	}

	if err := s.profiles.UpdateProfile(ctx, &updated); err != nil {
		var collision *domain.ErrSlugCollision
		if errors.As(err, &collision) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.invalidate(profileID, current.Slug, slug)
	s.logger.Info("profile saved",
		zap.String("profile_id", profileID),
		zap.String("slug", slug),
		zap.Int("products", len(products)),
	)
	return &updated, nil
}

// ResolveProfile finds a profile by slug first, then by id. Lookups are
// cached and concurrent misses for the same key share one query.
func (s *IdentityService) ResolveProfile(ctx context.Context, slugOrID string) (*domain.BusinessProfile, error) {
	ctx, span := identityTracer.Start(ctx, "IdentityService.ResolveProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.key", slugOrID))

	ref := strings.TrimSpace(slugOrID)
	if ref == "" {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: slugOrID}
	}
	// Slugs match case-insensitively, so every spelling shares one entry.
	key := profileCacheKey(ref)

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit(profileCacheName)
		return cached, nil
	}
	s.metrics.IncrCacheMiss(profileCacheName)

	v, err, _ := s.group.Do(key, func() (any, error) {
		profile, err := s.lookup(ctx, ref)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, profile)
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.BusinessProfile), nil
}

func (s *IdentityService) lookup(ctx context.Context, key string) (*domain.BusinessProfile, error) {
	var notFound *domain.ErrNotFound

	profile, err := s.profiles.GetProfileBySlug(ctx, strings.ToLower(key))
	if err == nil {
		return profile, nil
	}
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("get profile by slug: %w", err)
	}

	profile, err = s.profiles.GetProfileByID(ctx, key)
	if err == nil {
		return profile, nil
	}
	if errors.As(err, &notFound) {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: key}
	}
	return nil, fmt.Errorf("get profile by id: %w", err)
}

func (s *IdentityService) invalidate(keys ...string) {
	for _, k := range keys {
		if k != "" {
			s.cache.Delete(profileCacheKey(k))
		}
	}
}

func profileCacheKey(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
