package customers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists customers and their purchase statistics.
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

// PurchaseStats is one sale attributed to a customer key.
type PurchaseStats struct {
	TenantID    uuid.UUID
	Key         string
	Name        string
	Address     *string
	Phone       *string
	AmountCents int64
	PurchasedAt time.Time
}

// PurchaseRow is one sale in a customer's history.
type PurchaseRow struct {
	TenantID    uuid.UUID `gorm:"column:tenant_id"`
	CustomerKey string    `gorm:"column:customer_key"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// ListFilter narrows ListCustomers.
type ListFilter struct {
	Status *enums.CustomerStatus
	Search string
	Limit  int
	Cursor *pagination.Cursor
}

func (r *Repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// contactColumns are the fields an operator may edit. Purchase statistics are
// left to UpsertStats.
var contactColumns = []string{"name", "document", "address", "phone", "credit_limit_cents", "status", "updated_at"}

// UpdateContact writes the editable columns of customer and nothing else.
func (r *Repository) UpdateContact(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).
		Model(customer).
		Where("tenant_id = ?", customer.TenantID).
		Select(contactColumns).
		Updates(customer).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) FindByKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_key = ?", tenantID, key).
		First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.Customer, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("(LOWER(name) LIKE ? OR phone LIKE ? OR document LIKE ?)", like, like, like)
	}
	query = query.Scopes(filter.Cursor.After("created_at"))

	var customers []models.Customer
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&customers).Error
	return customers, err
}

// UpsertStats counts one purchase against the customer key, creating the
// customer on first sight. Counters are incremented in the statement itself so
// concurrent sales to the same customer cannot lose updates. Contact fields
// only overwrite stored values when supplied.
func (r *Repository) UpsertStats(ctx context.Context, stats PurchaseStats) error {
	at := stats.PurchasedAt.UTC()
	row := &models.Customer{
		TenantID:        stats.TenantID,
		CustomerKey:     stats.Key,
		Name:            strings.TrimSpace(stats.Name),
		Address:         stats.Address,
		Phone:           stats.Phone,
		Status:          enums.CustomerStatusActive,
		LastPurchaseAt:  &at,
		PurchaseCount:   1,
		TotalSpentCents: stats.AmountCents,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "customer_key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"purchase_count":    gorm.Expr("customers.purchase_count + 1"),
				"total_spent_cents": gorm.Expr("customers.total_spent_cents + excluded.total_spent_cents"),
				"last_purchase_at":  gorm.Expr("excluded.last_purchase_at"),
				"name":              gorm.Expr("CASE WHEN excluded.name <> '' THEN excluded.name ELSE customers.name END"),
				"address":           gorm.Expr("COALESCE(excluded.address, customers.address)"),
				"phone":             gorm.Expr("COALESCE(excluded.phone, customers.phone)"),
				"updated_at":        gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(row).Error
}

// PurchaseHistory lists non-cancelled attributed sales since the cutoff,
// grouped by tenant and customer key in chronological order.
func (r *Repository) PurchaseHistory(ctx context.Context, since time.Time) ([]PurchaseRow, error) {
	var rows []PurchaseRow
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("tenant_id, customer_key, created_at").
		Where("customer_key IS NOT NULL AND status <> ? AND created_at >= ?", enums.SaleStatusCancelled, since.UTC()).
		Order("tenant_id").
		Order("customer_key").
		Order("created_at ASC").
		Scan(&rows).Error
	return rows, err
}

// SetAverageInterval stores the reorder interval computed for a customer key.
func (r *Repository) SetAverageInterval(ctx context.Context, tenantID uuid.UUID, key string, days float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("tenant_id = ? AND customer_key = ?", tenantID, key).
		UpdateColumn("average_interval_days", days).Error
}
