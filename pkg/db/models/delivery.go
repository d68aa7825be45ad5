package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/pkg/enums"
)

type DeliveryDriver struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TenantID  uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name      string             `gorm:"column:name;not null"`
	Vehicle   string             `gorm:"column:vehicle;not null"`
	Plate     string             `gorm:"column:plate;not null"`
	Status    enums.DriverStatus `gorm:"column:status;not null;default:'available'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// DeliveryRoute groups online sales handed to one driver.
type DeliveryRoute struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	DriverID    uuid.UUID           `gorm:"column:driver_id;type:uuid;not null;index"`
	Status      enums.RouteStatus   `gorm:"column:status;not null;default:'pending'"`
	RouteDate   time.Time           `gorm:"column:route_date;not null"`
	StartedAt   *time.Time          `gorm:"column:started_at"`
	CompletedAt *time.Time          `gorm:"column:completed_at"`
	Stops       []DeliveryRouteStop `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

type DeliveryRouteStop struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RouteID  uuid.UUID `gorm:"column:route_id;type:uuid;not null;index"`
	SaleID   uuid.UUID `gorm:"column:sale_id;type:uuid;not null"`
	Position int       `gorm:"column:position;not null"`
}

// SaleIDs returns the route's sales in stop order.
func (r DeliveryRoute) SaleIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Stops))
	for i, stop := range r.Stops {
		ids[i] = stop.SaleID
	}
	return ids
}
