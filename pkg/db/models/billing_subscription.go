package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// BillingSubscription persists the Stripe subscription backing a tenant's plan.
type BillingSubscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	TenantID             uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;index"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;uniqueIndex:billing_subscriptions_stripe_id_key"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null"`
	Plan                 enums.PlanTier           `gorm:"column:plan;not null"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
