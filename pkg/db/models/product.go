package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// Product is the authoritative stock and pricing record of one catalog item.
type Product struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID       uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:products_tenant_sku_key,priority:1"`
	Name           string                `gorm:"column:name;not null"`
	Category       enums.ProductCategory `gorm:"column:category;not null"`
	SKU            string                `gorm:"column:sku;not null;uniqueIndex:products_tenant_sku_key,priority:2"`
	Stock          int                   `gorm:"column:stock;not null;default:0"`
	MinStock       int                   `gorm:"column:min_stock;not null;default:0"`
	CostPriceCents int64                 `gorm:"column:cost_price_cents;not null;default:0"`
	SellPriceCents int64                 `gorm:"column:sell_price_cents;not null;default:0"`
	Unit           string                `gorm:"column:unit;not null"`
	Active         bool                  `gorm:"column:active;not null"`
	ShowOnline     bool                  `gorm:"column:show_online;not null"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCritical reports whether stock has reached the reorder threshold.
func (p Product) IsCritical() bool {
	return p.Stock <= p.MinStock
}
