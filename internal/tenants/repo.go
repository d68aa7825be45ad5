package tenants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists distributor tenants.
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

// PlanCount is the number of tenants on a plan with a given status.
type PlanCount struct {
	Plan   enums.PlanTier           `gorm:"column:plan"`
	Status enums.SubscriptionStatus `gorm:"column:subscription_status"`
	Count  int64                    `gorm:"column:count"`
}

func (r *Repository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

// UpdateProfile writes the operator-editable profile columns. Plan and
// subscription fields belong to billing and are not touched.
func (r *Repository) UpdateProfile(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).
		Model(tenant).
		Select("company_name", "phone", "address", "storefront_open", "updated_at").
		Updates(tenant).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *Repository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// UpdateSubscription sets the plan and billing status mirrored from Stripe.
func (r *Repository) UpdateSubscription(ctx context.Context, id uuid.UUID, plan enums.PlanTier, status enums.SubscriptionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"plan":                plan,
			"subscription_status": status,
			"updated_at":          time.Now().UTC(),
		}).Error
}

func (r *Repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		UpdateColumn("stripe_customer_id", customerID).Error
}

// ListCanceledPaid returns tenants still on a paid plan whose subscription ended.
func (r *Repository) ListCanceledPaid(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).
		Where("plan <> ? AND subscription_status = ?", enums.PlanTierFree, enums.SubscriptionStatusCanceled).
		Find(&tenants).Error
	return tenants, err
}

// CountByPlan groups every tenant by plan and subscription status.
func (r *Repository) CountByPlan(ctx context.Context) ([]PlanCount, error) {
	var rows []PlanCount
	err := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Select("plan, subscription_status, COUNT(*) AS count").
		Group("plan, subscription_status").
		Scan(&rows).Error
	return rows, err
}
