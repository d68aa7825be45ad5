package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Postgres fills ids through gen_random_uuid(); rows created on sqlite (local
// dev and tests) need them assigned client side.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (t *Tenant) BeforeCreate(*gorm.DB) error              { ensureID(&t.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error                { ensureID(&u.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error             { ensureID(&p.ID); return nil }
func (s *Sale) BeforeCreate(*gorm.DB) error                { ensureID(&s.ID); return nil }
func (i *SaleItem) BeforeCreate(*gorm.DB) error            { ensureID(&i.ID); return nil }
func (e *LedgerEntry) BeforeCreate(*gorm.DB) error         { ensureID(&e.ID); return nil }
func (c *Customer) BeforeCreate(*gorm.DB) error            { ensureID(&c.ID); return nil }
func (d *DeliveryDriver) BeforeCreate(*gorm.DB) error      { ensureID(&d.ID); return nil }
func (r *DeliveryRoute) BeforeCreate(*gorm.DB) error       { ensureID(&r.ID); return nil }
func (s *DeliveryRouteStop) BeforeCreate(*gorm.DB) error   { ensureID(&s.ID); return nil }
func (s *BillingSubscription) BeforeCreate(*gorm.DB) error { ensureID(&s.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error         { ensureID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error           { ensureID(&d.ID); return nil }

// All lists every persisted model, in dependency order, for sqlite AutoMigrate.
func All() []any {
	return []any{
		&Tenant{},
		&User{},
		&Product{},
		&Customer{},
		&Sale{},
		&SaleItem{},
		&LedgerEntry{},
		&DeliveryDriver{},
		&DeliveryRoute{},
		&DeliveryRouteStop{},
		&BillingSubscription{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
