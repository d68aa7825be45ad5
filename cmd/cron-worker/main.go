package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loggas/loggas-backend/internal/boot"
	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/cron"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/metrics"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/redis"
)

func main() {
	proc := boot.Start("cron-worker")
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker", cfg.App.Env), cfg.Cron.LockTTL)
	proc.Must("cron lock", err)
	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	proc.Must("cron jobs", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Cron.Tick,
	})
	proc.Must("cron service", err)

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		proc.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)

	customerService, err := customers.NewService(customers.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}

	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:  logg,
		DB:      dbClient,
		Catalog: catalog.NewRepository(gormDB),
		Outbox:  emitter,
		Dedup:   redisClient,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger:  logg,
		DB:      dbClient,
		Tenants: tenants.NewRepository(gormDB),
		Outbox:  emitter,
	})
	if err != nil {
		return nil, err
	}
	reorder, err := cron.NewReorderIntervalJob(cron.ReorderIntervalJobParams{
		Logger:    logg,
		Customers: customerService,
		Horizon:   cfg.Cron.ReorderHorizon,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, scheduled := range []struct {
		job   cron.Job
		every time.Duration
	}{
		{lowStock, cfg.Cron.LowStockEvery},
		{reconcile, cfg.Cron.ReconcileEvery},
		{reorder, cfg.Cron.ReorderEvery},
		{retention, cfg.Cron.RetentionEvery},
	} {
		if err := registry.Register(scheduled.job, scheduled.every); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
