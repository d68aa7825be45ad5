package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// Tenant is one distributor; every catalog, sale, ledger and customer row belongs to one.
type Tenant struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CompanyName        string                   `gorm:"column:company_name;not null"`
	Slug               string                   `gorm:"column:slug;not null;uniqueIndex:tenants_slug_key"`
	Phone              *string                  `gorm:"column:phone"`
	Address            *string                  `gorm:"column:address"`
	StorefrontOpen     bool                     `gorm:"column:storefront_open;not null"`
	Plan               enums.PlanTier           `gorm:"column:plan;not null;default:'free'"`
	SubscriptionStatus enums.SubscriptionStatus `gorm:"column:subscription_status;not null;default:'active'"`
	StripeCustomerID   *string                  `gorm:"column:stripe_customer_id"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
