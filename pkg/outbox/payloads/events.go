package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// SaleLine is the per-item view carried by sale events.
type SaleLine struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// SaleCreatedEvent is emitted once per committed sale.
type SaleCreatedEvent struct {
	SaleID        uuid.UUID           `json:"sale_id"`
	TenantID      uuid.UUID           `json:"tenant_id"`
	CustomerKey   string              `json:"customer_key,omitempty"`
	CustomerName  string              `json:"customer_name"`
	TotalCents    int64               `json:"total_cents"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Origin        enums.SaleOrigin    `json:"origin"`
	Status        enums.SaleStatus    `json:"status"`
	Lines         []SaleLine          `json:"lines"`
	CreatedAt     time.Time           `json:"created_at"`
}

// SaleStatusChangedEvent is emitted on every accepted fulfillment transition.
type SaleStatusChangedEvent struct {
	SaleID    uuid.UUID        `json:"sale_id"`
	TenantID  uuid.UUID        `json:"tenant_id"`
	From      enums.SaleStatus `json:"from"`
	To        enums.SaleStatus `json:"to"`
	ChangedAt time.Time        `json:"changed_at"`
}

// ProductRestockedEvent records a stock increase and its booked expense.
type ProductRestockedEvent struct {
	ProductID     uuid.UUID `json:"product_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	UnitCostCents int64     `json:"unit_cost_cents"`
	StockAfter    int       `json:"stock_after"`
	RestockedAt   time.Time `json:"restocked_at"`
}

// LowStockDetectedEvent flags a product at or under its reorder threshold.
type LowStockDetectedEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	ProductName string    `json:"product_name"`
	Stock       int       `json:"stock"`
	MinStock    int       `json:"min_stock"`
	DetectedAt  time.Time `json:"detected_at"`
}

// SubscriptionUpdatedEvent mirrors a plan change synced from Stripe.
type SubscriptionUpdatedEvent struct {
	TenantID             uuid.UUID                `json:"tenant_id"`
	StripeSubscriptionID string                   `json:"stripe_subscription_id"`
	Plan                 enums.PlanTier           `json:"plan"`
	Status               enums.SubscriptionStatus `json:"status"`
}
