package ledger

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

// Repository manages persistence for ledger entries. Entries are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.LedgerEntry, error)
	FindBySaleID(ctx context.Context, tenantID, saleID uuid.UUID) (*models.LedgerEntry, error)
	Totals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (Totals, error)
	RevenueByPaymentMethod(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]PaymentMethodTotal, error)
}

// ListFilter narrows a ledger listing. Zero values disable a filter.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Type   *enums.LedgerEntryType
	Limit  int
	Cursor *pagination.Cursor
}

// Totals sums income and expense over a range.
type Totals struct {
	IncomeCents  int64 `gorm:"column:income_cents"`
	ExpenseCents int64 `gorm:"column:expense_cents"`
}

// PaymentMethodTotal is the sale income collected through one payment method.
type PaymentMethodTotal struct {
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method" json:"payment_method"`
	TotalCents    int64               `gorm:"column:total_cents" json:"total_cents"`
	Sales         int64               `gorm:"column:sales" json:"sales"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("tenant_id = ?", tenantID)

	if filter.From != nil {
		query = query.Where("occurred_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("occurred_at < ?", filter.To.UTC())
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	query = query.Scopes(filter.Cursor.After("occurred_at"))

	var entries []models.LedgerEntry
	err := query.
		Order("occurred_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&entries).Error
	return entries, err
}

func (r *repository) FindBySaleID(ctx context.Context, tenantID, saleID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sale_id = ?", tenantID, saleID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) Totals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select(`COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS income_cents,
			COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS expense_cents`,
			enums.LedgerEntryIncome, enums.LedgerEntryExpense).
		Where("tenant_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantID, from.UTC(), to.UTC()).
		Scan(&totals).Error
	return totals, err
}

func (r *repository) RevenueByPaymentMethod(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]PaymentMethodTotal, error) {
	var rows []PaymentMethodTotal
	err := r.db.WithContext(ctx).
		Table("ledger_entries AS l").
		Select("s.payment_method AS payment_method, COALESCE(SUM(l.amount_cents), 0) AS total_cents, COUNT(*) AS sales").
		Joins("JOIN sales s ON s.id = l.sale_id").
		Where("l.tenant_id = ? AND l.type = ?", tenantID, enums.LedgerEntryIncome).
		Where("l.occurred_at >= ? AND l.occurred_at < ?", from.UTC(), to.UTC()).
		Group("s.payment_method").
		Order("total_cents DESC").
		Scan(&rows).Error
	return rows, err
}
