package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// LedgerEntry is an append-only financial record. SaleID links the income
// entry of a sale and is unique when present.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	OccurredAt  time.Time             `gorm:"column:occurred_at;not null;index"`
	Description string                `gorm:"column:description;not null"`
	Type        enums.LedgerEntryType `gorm:"column:type;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Category    string                `gorm:"column:category;not null"`
	SaleID      *uuid.UUID            `gorm:"column:sale_id;type:uuid;uniqueIndex:ledger_entries_sale_id_key"`
	ProductID   *uuid.UUID            `gorm:"column:product_id;type:uuid"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
