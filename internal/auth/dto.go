package auth

import (
	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest pairs the last access token (expired or not) with its refresh token.
type RefreshRequest struct {
	AccessToken  string `json:"-"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TenantSummary describes the distributor an admin operates.
type TenantSummary struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	Slug        string    `json:"slug"`
}

// LoginResponse contains the tokens and user produced by a successful login or refresh.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.Profile `json:"user"`
	Tenant       *TenantSummary `json:"tenant,omitempty"`
}

// RegisterAdminRequest onboards a distributor together with its first admin.
type RegisterAdminRequest struct {
	Name        string  `json:"name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName string  `json:"company_name" validate:"required"`
	Address     *string `json:"address,omitempty"`
}

// RegisterCustomerRequest creates a storefront shopper account.
type RegisterCustomerRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}
