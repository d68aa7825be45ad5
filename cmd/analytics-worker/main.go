package main

import (
	"context"
	"errors"
	"time"

	"github.com/loggas/loggas-backend/internal/analytics/router"
	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/internal/analytics/worker"
	"github.com/loggas/loggas-backend/internal/analytics/writer"
	"github.com/loggas/loggas-backend/internal/boot"
	"github.com/loggas/loggas-backend/pkg/bigquery"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/outbox/idempotency"
)

// flushTimeout bounds the final write of buffered facts after shutdown.
const flushTimeout = 10 * time.Second

func main() {
	proc := boot.Start("analytics-worker")
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	cfg, logg := proc.Config, proc.Logger

	redisClient := proc.Redis(ctx)
	subscription := proc.PubSub(ctx).AnalyticsSubscription()
	if subscription == nil {
		proc.Must("analytics subscription", errors.New("subscription not configured"))
	}

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, factTables(cfg.BigQuery)...)
	proc.Must("bigquery", err)
	proc.OnClose("bigquery", bq.Close)

	guard, err := idempotency.NewGuard(redisClient, worker.ConsumerScope, cfg.Eventing.DedupTTL)
	proc.Must("delivery guard", err)

	facts, err := writer.New(bq, writer.Config{
		SalesTable:  cfg.BigQuery.SalesFactsTable,
		StockTable:  cfg.BigQuery.StockFactsTable,
		MaxAttempts: cfg.BigQuery.InsertMaxRetries,
	})
	proc.Must("fact writer", err)
	proc.OnClose("buffered facts", func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		return facts.Flush(flushCtx)
	})

	handler, err := router.NewRouter(facts, logg, nil)
	proc.Must("analytics router", err)
	service, err := worker.NewService(subscription, handler, guard, logg)
	proc.Must("analytics worker", err)

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		proc.Exit(1)
	}
}

func factTables(cfg config.BigQueryConfig) []bigquery.TableSpec {
	return []bigquery.TableSpec{
		{Name: cfg.SalesFactsTable, Row: types.SaleFactRow{}, PartitionField: "occurred_at"},
		{Name: cfg.StockFactsTable, Row: types.StockFactRow{}, PartitionField: "occurred_at"},
	}
}
