package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

type tenantPlanRepo interface {
	ListCanceledPaid(ctx context.Context) ([]models.Tenant, error)
	WithTx(tx *gorm.DB) *tenants.Repository
}

// SubscriptionReconcileJobParams configures the plan downgrade job.
type SubscriptionReconcileJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Tenants tenantPlanRepo
	Outbox  outbox.Emitter
}

// NewSubscriptionReconcileJob moves tenants whose paid subscription ended
// back to the free plan.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Tenants == nil:
		return nil, fmt.Errorf("tenant repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &subscriptionReconcileJob{
		logg:    params.Logger,
		db:      params.DB,
		tenants: params.Tenants,
		outbox:  params.Outbox,
	}, nil
}

type subscriptionReconcileJob struct {
	logg    *logger.Logger
	db      txRunner
	tenants tenantPlanRepo
	outbox  outbox.Emitter
}

func (j *subscriptionReconcileJob) Name() string { return "subscription-reconcile" }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	due, err := j.tenants.ListCanceledPaid(ctx)
	if err != nil {
		return fmt.Errorf("list canceled tenants: %w", err)
	}

	var errs error
	downgraded := 0
	for _, tenant := range due {
		if err := j.downgrade(ctx, tenant.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("downgrade %s: %w", tenant.ID, err))
			continue
		}
		downgraded++
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenant.ID.String(),
			"from_plan": string(tenant.Plan),
		}), "tenant moved to free plan")
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":        len(due),
		"downgraded": downgraded,
	}), "subscription reconcile complete")
	return errs
}

func (j *subscriptionReconcileJob) downgrade(ctx context.Context, tenantID uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.tenants.WithTx(tx).UpdateSubscription(ctx, tenantID, enums.PlanTierFree, enums.SubscriptionStatusActive); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionUpdated,
			AggregateType: enums.AggregateTenant,
			AggregateID:   tenantID,
			TenantID:      &tenantID,
			Data: payloads.SubscriptionUpdatedEvent{
				TenantID: tenantID,
				Plan:     enums.PlanTierFree,
				Status:   enums.SubscriptionStatusActive,
			},
		})
	})
}
