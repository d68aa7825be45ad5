package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/loggas/loggas-backend/pkg/logger"
)

const defaultReorderHorizon = 180 * 24 * time.Hour

type reorderCalculator interface {
	ComputeReorderIntervals(ctx context.Context, since time.Time) (int, error)
}

type ReorderIntervalJobParams struct {
	Logger    *logger.Logger
	Customers reorderCalculator
	Horizon   time.Duration
}

// NewReorderIntervalJob refreshes each customer's average days between
// purchases from sales inside Horizon.
func NewReorderIntervalJob(params ReorderIntervalJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer service required")
	}
	horizon := params.Horizon
	if horizon <= 0 {
		horizon = defaultReorderHorizon
	}
	return &reorderIntervalJob{
		logg:      params.Logger,
		customers: params.Customers,
		horizon:   horizon,
		now:       time.Now,
	}, nil
}

type reorderIntervalJob struct {
	logg      *logger.Logger
	customers reorderCalculator
	horizon   time.Duration
	now       func() time.Time
}

func (j *reorderIntervalJob) Name() string { return "reorder-intervals" }

func (j *reorderIntervalJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.horizon)
	updated, err := j.customers.ComputeReorderIntervals(ctx, since)
	if err != nil {
		return fmt.Errorf("compute reorder intervals: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"since":   since,
		"updated": updated,
	}), "reorder intervals refreshed")
	return nil
}
