package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
)

// Repository stores the Stripe subscriptions mirrored per tenant. Lookups
// return nil, nil when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Save(ctx context.Context, sub *models.BillingSubscription) error
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.BillingSubscription, error)
	FindCurrent(ctx context.Context, tenantID uuid.UUID) (*models.BillingSubscription, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Save inserts a subscription that has never been stored and updates it
// otherwise.
func (r *repository) Save(ctx context.Context, sub *models.BillingSubscription) error {
	db := r.db.WithContext(ctx)
	if sub.CreatedAt.IsZero() {
		return db.Create(sub).Error
	}
	return db.Save(sub).Error
}

func (r *repository) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.BillingSubscription, error) {
	return r.first(r.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeSubscriptionID))
}

// FindCurrent picks the tenant's newest subscription that is not canceled.
func (r *repository) FindCurrent(ctx context.Context, tenantID uuid.UUID) (*models.BillingSubscription, error) {
	return r.first(r.db.WithContext(ctx).
		Where("tenant_id = ? AND status <> ?", tenantID, enums.SubscriptionStatusCanceled).
		Order("created_at DESC"))
}

func (r *repository) first(query *gorm.DB) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	switch err := query.First(&sub).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &sub, nil
}
