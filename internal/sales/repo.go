package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/pagination"
	"gorm.io/gorm"
)

const idempotencyConstraint = "sales_tenant_idempotency_key"

// Repository persists sales and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a repository to the provided GORM connection.
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

// ListFilter narrows ListSales. Zero values disable a filter.
type ListFilter struct {
	Origin *enums.SaleOrigin
	Status *enums.SaleStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor *pagination.Cursor
}

// Create inserts the sale together with its items.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.withItems(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindByIdempotencyKey returns nil when no sale carries the key.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Sale, error) {
	var sale models.Sale
	err := r.withItems(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindByIDs loads the tenant's sales among ids, in no particular order.
func (r *Repository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Sale, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sales []models.Sale
	err := r.withItems(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&sales).Error
	return sales, err
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.Sale, error) {
	query := r.withItems(ctx).Where("tenant_id = ?", tenantID)
	if filter.Origin != nil {
		query = query.Where("origin = ?", *filter.Origin)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}
	query = query.Scopes(filter.Cursor.After("created_at"))

	var sales []models.Sale
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&sales).Error
	return sales, err
}

// ListByBuyer returns the storefront orders a customer account placed, across tenants.
func (r *Repository) ListByBuyer(ctx context.Context, userID uuid.UUID, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.withItems(ctx).
		Where("buyer_user_id = ?", userID).
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&sales).Error
	return sales, err
}

// ListByCustomerKey returns a customer's most recent sales within a tenant.
func (r *Repository) ListByCustomerKey(ctx context.Context, tenantID uuid.UUID, key string, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.withItems(ctx).
		Where("tenant_id = ? AND customer_key = ?", tenantID, key).
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&sales).Error
	return sales, err
}

// Summary aggregates non-cancelled sales over a range.
type Summary struct {
	Count      int64 `gorm:"column:sale_count"`
	TotalCents int64 `gorm:"column:total_cents"`
}

func (r *Repository) Summarize(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (Summary, error) {
	var out Summary
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("COUNT(*) AS sale_count, COALESCE(SUM(total_cents), 0) AS total_cents").
		Where("tenant_id = ? AND status <> ? AND created_at >= ? AND created_at < ?", tenantID, enums.SaleStatusCancelled, from, to).
		Scan(&out).Error
	return out, err
}

// ProductVolume is the quantity and revenue one product moved.
type ProductVolume struct {
	ProductID   uuid.UUID `gorm:"column:product_id" json:"product_id"`
	ProductName string    `gorm:"column:product_name" json:"product_name"`
	Quantity    int64     `gorm:"column:quantity" json:"quantity"`
	TotalCents  int64     `gorm:"column:total_cents" json:"total_cents"`
}

// TopProducts ranks products by quantity sold in non-cancelled sales.
func (r *Repository) TopProducts(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]ProductVolume, error) {
	var rows []ProductVolume
	err := r.db.WithContext(ctx).
		Table("sale_items AS i").
		Select("i.product_id, MAX(i.product_name) AS product_name, SUM(i.quantity) AS quantity, SUM(i.quantity * i.unit_price_cents) AS total_cents").
		Joins("JOIN sales AS s ON s.id = i.sale_id").
		Where("s.tenant_id = ? AND s.status <> ? AND s.created_at >= ? AND s.created_at < ?", tenantID, enums.SaleStatusCancelled, from, to).
		Group("i.product_id").
		Order("quantity DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Scan(&rows).Error
	return rows, err
}

// UpdateStatus moves the sale only if it is still in the expected status,
// stamping updated_at with at. It reports whether the row changed.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to enums.SaleStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, from).
		UpdateColumns(map[string]any{
			"status":     to,
			"updated_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
