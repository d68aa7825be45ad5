package deliveries

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
)

// Repository persists drivers, routes and their stops.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateDriver(ctx context.Context, driver *models.DeliveryDriver) error {
	return r.db.WithContext(ctx).Create(driver).Error
}

// UpdateDriver writes the driver's name, vehicle and plate. Status is written
// only when from is set, and only while the row still holds from.
func (r *Repository) UpdateDriver(ctx context.Context, driver *models.DeliveryDriver, from *enums.DriverStatus) (bool, error) {
	columns := []string{"name", "vehicle", "plate", "updated_at"}
	query := r.db.WithContext(ctx).Model(driver).Where("tenant_id = ?", driver.TenantID)
	if from != nil {
		columns = append(columns, "status")
		query = query.Where("status = ?", *from)
	}
	res := query.Select(columns).Updates(driver)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) DeleteDriver(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.DeliveryDriver{}).Error
}

func (r *Repository) FindDriver(ctx context.Context, tenantID, id uuid.UUID) (*models.DeliveryDriver, error) {
	var driver models.DeliveryDriver
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&driver).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *Repository) ListDrivers(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryDriver, error) {
	var drivers []models.DeliveryDriver
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name ASC").Find(&drivers).Error
	return drivers, err
}

func (r *Repository) SetDriverStatus(ctx context.Context, tenantID, id uuid.UUID, status enums.DriverStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryDriver{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{"status": status, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")}).Error
}

// CreateRoute inserts the route together with its stops.
func (r *Repository) CreateRoute(ctx context.Context, route *models.DeliveryRoute) error {
	return r.db.WithContext(ctx).Create(route).Error
}

// MoveRoute persists route's status and timestamps if the stored status is
// still from.
func (r *Repository) MoveRoute(ctx context.Context, route *models.DeliveryRoute, from enums.RouteStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(route).
		Where("tenant_id = ? AND status = ?", route.TenantID, from).
		Select("status", "started_at", "completed_at", "updated_at").
		Updates(route)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) FindRoute(ctx context.Context, tenantID, id uuid.UUID) (*models.DeliveryRoute, error) {
	var route models.DeliveryRoute
	err := r.withStops(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&route).Error
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *Repository) ListRoutes(ctx context.Context, tenantID uuid.UUID, status *enums.RouteStatus) ([]models.DeliveryRoute, error) {
	q := r.withStops(ctx).Where("tenant_id = ?", tenantID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var routes []models.DeliveryRoute
	err := q.Order("route_date DESC").Order("created_at DESC").Find(&routes).Error
	return routes, err
}

// SalesOnOpenRoutes returns which of saleIDs already sit on a route that has
// not been completed.
func (r *Repository) SalesOnOpenRoutes(ctx context.Context, tenantID uuid.UUID, saleIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(saleIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("delivery_route_stops AS s").
		Joins("JOIN delivery_routes AS r ON r.id = s.route_id").
		Where("r.tenant_id = ? AND r.status <> ? AND s.sale_id IN ?", tenantID, enums.RouteStatusCompleted, saleIDs).
		Pluck("s.sale_id", &ids).Error
	return ids, err
}

// HasOpenRoute reports whether the driver still has a pending or in-progress route.
func (r *Repository) HasOpenRoute(ctx context.Context, tenantID, driverID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryRoute{}).
		Where("tenant_id = ? AND driver_id = ? AND status <> ?", tenantID, driverID, enums.RouteStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) withStops(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
