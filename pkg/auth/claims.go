package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	TenantID *uuid.UUID
	Role     enums.UserRole
	JTI      string
}

// AccessTokenClaims is the typed JWT issued to clients. TenantID is set for
// distributor admins and absent for storefront customers and super admins.
type AccessTokenClaims struct {
	UserID   uuid.UUID      `json:"user_id"`
	TenantID *uuid.UUID     `json:"tid,omitempty"`
	Role     enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AccessID returns the jti that keys the refresh session.
func (c AccessTokenClaims) AccessID() string {
	return c.ID
}

// Validate runs after the registered claims checks; jwt/v5 calls it for
// any claims type that implements jwt.ClaimsValidator.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token has no subject user")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token role %q is not recognized", c.Role)
	}
	if c.Role == enums.UserRoleAdmin && c.TenantID == nil {
		return errors.New("admin token is not bound to a tenant")
	}
	if c.ID == "" {
		return errors.New("token has no jti")
	}
	return nil
}
