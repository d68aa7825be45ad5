package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// Customer carries contact data and running purchase statistics. CustomerKey is
// the identity sales are attributed to: the customer id, or a phone surrogate
// for anonymous storefront buyers.
type Customer struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID            uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:customers_tenant_key,priority:1"`
	CustomerKey         string               `gorm:"column:customer_key;not null;uniqueIndex:customers_tenant_key,priority:2"`
	Name                string               `gorm:"column:name;not null;default:''"`
	Document            *string              `gorm:"column:document"`
	Address             *string              `gorm:"column:address"`
	Phone               *string              `gorm:"column:phone"`
	CreditLimitCents    int64                `gorm:"column:credit_limit_cents;not null;default:0"`
	Status              enums.CustomerStatus `gorm:"column:status;not null;default:'active'"`
	LastPurchaseAt      *time.Time           `gorm:"column:last_purchase_at"`
	PurchaseCount       int                  `gorm:"column:purchase_count;not null;default:0"`
	TotalSpentCents     int64                `gorm:"column:total_spent_cents;not null;default:0"`
	AverageIntervalDays *float64             `gorm:"column:average_interval_days"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
