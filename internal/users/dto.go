package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
)

// Profile is a user as the API shows it. The password hash never leaves
// this package.
type Profile struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Phone       *string        `json:"phone,omitempty"`
	Address     *string        `json:"address,omitempty"`
	Role        enums.UserRole `json:"role"`
	TenantID    *uuid.UUID     `json:"tenant_id,omitempty"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func ProfileOf(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	p := Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		Address:     u.Address,
		Role:        u.Role,
		TenantID:    u.TenantID,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	return &p
}

// NewUser is an account about to be created. New accounts start active.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Address      *string
	Role         enums.UserRole
	TenantID     *uuid.UUID
}

func (n NewUser) model() *models.User {
	return &models.User{
		Email:        normalizeEmail(n.Email),
		PasswordHash: n.PasswordHash,
		Name:         strings.TrimSpace(n.Name),
		Phone:        n.Phone,
		Address:      n.Address,
		Role:         n.Role,
		TenantID:     n.TenantID,
		IsActive:     true,
	}
}
