// Package domain defines the core business entities for the BazChat storefront.
// These models are independent of storage and transport and represent the
// canonical view-model shapes returned by the API (camelCase JSON).
package domain

import "time"

// ============================================================
// Users & business profiles
// ============================================================

// User is the login identity of a business owner. Phone is the login key.
type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	BusinessID   string    `json:"businessId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Product is one catalog entry. Products only persist as part of a
// whole-profile save.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
}

// FAQ is a question/answer pair shown on the public page and fed to the
// auto-responder.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BusinessProfile is the seller entity owning a catalog and receiving chats.
type BusinessProfile struct {
	ID             string            `json:"id"`
	Slug           string            `json:"slug"`
	Name           string            `json:"name"`
	OwnerName      string            `json:"ownerName"`
	Description    string            `json:"description,omitempty"`
	Phone          string            `json:"phone"`
	CountryCode    string            `json:"countryCode"`
	Logo           string            `json:"logo"`
	SocialLinks    map[string]string `json:"socialLinks"`
	Products       []Product         `json:"products"`
	FAQs           []FAQ             `json:"faqs"`
	Currency       string            `json:"currency"`
	ReturnPolicy   string            `json:"returnPolicy"`
	DeliveryPolicy string            `json:"deliveryPolicy"`
	AIEnabled      bool              `json:"aiEnabled"`
	AIBusinessInfo string            `json:"aiBusinessInfo"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// DisplayName is the name customers see in the chat header and greeting.
func (p *BusinessProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.OwnerName
}

// PublicProfile is the subset of a profile served on the public chat page.
// It leaves out the auto-responder configuration.
type PublicProfile struct {
	ID             string            `json:"id"`
	Slug           string            `json:"slug"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Phone          string            `json:"phone"`
	CountryCode    string            `json:"countryCode"`
	Logo           string            `json:"logo"`
	SocialLinks    map[string]string `json:"socialLinks"`
	Products       []Product         `json:"products"`
	FAQs           []FAQ             `json:"faqs"`
	Currency       string            `json:"currency"`
	ReturnPolicy   string            `json:"returnPolicy"`
	DeliveryPolicy string            `json:"deliveryPolicy"`
}

// Public returns the customer-facing view of the profile.
func (p *BusinessProfile) Public() *PublicProfile {
	return &PublicProfile{
		ID:             p.ID,
		Slug:           p.Slug,
		Name:           p.DisplayName(),
		Description:    p.Description,
		Phone:          p.Phone,
		CountryCode:    p.CountryCode,
		Logo:           p.Logo,
		SocialLinks:    p.SocialLinks,
		Products:       p.Products,
		FAQs:           p.FAQs,
		Currency:       p.Currency,
		ReturnPolicy:   p.ReturnPolicy,
		DeliveryPolicy: p.DeliveryPolicy,
	}
}

// ============================================================
// Auth: request / response types
// ============================================================

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	CountryCode string `json:"countryCode"`
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login. Clients persist it as the
// cached session user.
type AuthResponse struct {
	AccessToken string           `json:"accessToken"`
	ExpiresIn   int              `json:"expiresIn"`
	User        *User            `json:"user"`
	Profile     *BusinessProfile `json:"profile"`
}
