package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository bundles product persistence. Every query is scoped by tenant.
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

// ListFilter narrows ListProducts. Zero values disable a filter.
type ListFilter struct {
	Category     *enums.ProductCategory
	Active       *bool
	OnlineOnly   bool
	LowStockOnly bool
	Search       string
	Limit        int
	Cursor       *pagination.Cursor
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update writes only the given columns. Stock is never part of an edit unless
// the caller sets it, so a sale committing meanwhile keeps its decrement.
func (r *Repository) Update(ctx context.Context, tenantID, id uuid.UUID, columns map[string]any) (bool, error) {
	if len(columns) == 0 {
		return true, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(columns)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ToggleOnline flips show_online in place. Inactive products that are already
// hidden are left untouched, and the call reports false for them.
func (r *Repository) ToggleOnline(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id = ? AND (active = ? OR show_online = ?)", tenantID, id, true, true).
		Update("show_online", gorm.Expr("NOT show_online"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the tenant's products among ids, keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	found := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		found[p.ID] = p
	}
	return found, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ?", tenantID)

	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if filter.OnlineOnly {
		query = query.Where("show_online = ?", true)
	}
	if filter.LowStockOnly {
		query = query.Where("stock <= min_stock")
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(sku) LIKE ?)", like, like)
	}
	query = query.Scopes(filter.Cursor.After("created_at"))

	var products []models.Product
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&products).Error
	return products, err
}

// ListStorefront returns the active products the tenant shows online, by name.
func (r *Repository) ListStorefront(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ? AND show_online = ?", tenantID, true, true).
		Order("name ASC").
		Find(&products).Error
	return products, err
}

// ListCritical returns active products at or below their reorder threshold.
// A nil tenantID scans every tenant.
func (r *Repository) ListCritical(ctx context.Context, tenantID *uuid.UUID) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Where("active = ? AND stock <= min_stock", true)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	var products []models.Product
	err := query.Order("tenant_id").Order("stock ASC").Order("name ASC").Find(&products).Error
	return products, err
}

// DecrementStock removes quantity only when enough stock remains and returns
// the stock left. Inside a transaction the updated row stays locked until
// commit, so remaining reflects exactly this decrement.
func (r *Repository) DecrementStock(ctx context.Context, tenantID, id uuid.UUID, quantity int) (remaining int, ok bool, err error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id = ? AND stock >= ?", tenantID, id, quantity).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, false, nil
	}
	err = r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("stock").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Scan(&remaining).Error
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

// ApplyRestock adds quantity to stock and records unitCostCents as the new cost basis.
func (r *Repository) ApplyRestock(ctx context.Context, tenantID, id uuid.UUID, quantity int, unitCostCents int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		UpdateColumns(map[string]any{
			"stock":            gorm.Expr("stock + ?", quantity),
			"cost_price_cents": unitCostCents,
			"updated_at":       gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// StockValueCents sums stock times cost price over the tenant's active products.
func (r *Repository) StockValueCents(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("COALESCE(SUM(stock * cost_price_cents), 0)").
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Scan(&total).Error
	return total, err
}
