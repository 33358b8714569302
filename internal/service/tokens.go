package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/bazchat-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "bazchat-api"
	tokenTypeAccess = "access"
)

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub        string `json:"sub"`
	BusinessID string `json:"bid"`
	Type       string `json:"type"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies an owner access token.
func (s *IdentityService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != tokenTypeAccess || claims.BusinessID == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return claims, nil
}

func (s *IdentityService) signAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:        user.ID,
		BusinessID: user.BusinessID,
		Type:       tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *IdentityService) authResponse(user *domain.User, profile *domain.BusinessProfile) (*domain.AuthResponse, error) {
	token, err := s.signAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &domain.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL / time.Second),
		User:        user,
		Profile:     profile,
	}, nil
}
