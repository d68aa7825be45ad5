package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
	"github.com/loggas/loggas-backend/pkg/redis"
)

const lowStockReminderScope = "low-stock-reminder"

// txRunner is satisfied by *db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type criticalStockRepo interface {
	ListCritical(ctx context.Context, tenantID *uuid.UUID) ([]models.Product, error)
}

type LowStockJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Catalog criticalStockRepo
	Outbox  outbox.Emitter
	Dedup   redis.IdempotencyStore
}

// NewLowStockJob re-announces every product still at or under its threshold,
// at most once per product per UTC day.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Dedup == nil:
		return nil, fmt.Errorf("dedup store required")
	}
	return &lowStockJob{
		logg:    params.Logger,
		db:      params.DB,
		catalog: params.Catalog,
		outbox:  params.Outbox,
		dedup:   params.Dedup,
		now:     time.Now,
	}, nil
}

type lowStockJob struct {
	logg    *logger.Logger
	db      txRunner
	catalog criticalStockRepo
	outbox  outbox.Emitter
	dedup   redis.IdempotencyStore
	now     func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) error {
	products, err := j.catalog.ListCritical(ctx, nil)
	if err != nil {
		return fmt.Errorf("list critical stock: %w", err)
	}

	now := j.now().UTC()
	day := now.Format(time.DateOnly)
	var (
		errs      error
		announced int
	)
	for i := range products {
		product := products[i]
		key := j.dedup.IdempotencyKey(lowStockReminderScope, product.ID.String()+":"+day)
		fresh, err := j.dedup.SetNX(ctx, key, "1", 24*time.Hour)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dedup %s: %w", product.ID, err))
			continue
		}
		if !fresh {
			continue
		}
		if err := j.announce(ctx, product, now); err != nil {
			_ = j.dedup.Del(ctx, key)
			errs = multierr.Append(errs, fmt.Errorf("announce %s: %w", product.ID, err))
			continue
		}
		announced++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"critical":  len(products),
		"announced": announced,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}

func (j *lowStockJob) announce(ctx context.Context, product models.Product, now time.Time) error {
	tenantID := product.TenantID
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			TenantID:      &tenantID,
			Data: payloads.LowStockDetectedEvent{
				ProductID:   product.ID,
				TenantID:    tenantID,
				ProductName: product.Name,
				Stock:       product.Stock,
				MinStock:    product.MinStock,
				DetectedAt:  now,
			},
			OccurredAt: now,
		})
	})
}
