package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// Sale is a committed order. Status is the only column mutated after creation.
type Sale struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID        uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index;uniqueIndex:sales_tenant_idempotency_key,priority:1"`
	CustomerRef     string              `gorm:"column:customer_ref;not null"`
	CustomerKey     *string             `gorm:"column:customer_key;index"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerAddress *string             `gorm:"column:customer_address"`
	CustomerPhone   *string             `gorm:"column:customer_phone"`
	BuyerUserID     *uuid.UUID          `gorm:"column:buyer_user_id;type:uuid;index"`
	TotalCents      int64               `gorm:"column:total_cents;not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Status          enums.SaleStatus    `gorm:"column:status;not null"`
	Origin          enums.SaleOrigin    `gorm:"column:origin;not null"`
	IdempotencyKey  *string             `gorm:"column:idempotency_key;uniqueIndex:sales_tenant_idempotency_key,priority:2"`
	Items           []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// SaleItem is a line of a sale; UnitPriceCents is the price captured when the
// line entered the cart.
type SaleItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         uuid.UUID `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Position       int       `gorm:"column:position;not null;default:0"`
}

// LineTotalCents is quantity times the snapshotted price.
func (i SaleItem) LineTotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}
