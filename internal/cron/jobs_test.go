package cron

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/db/dbtest"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type memoryDedup struct {
	keys map[string]string
}

func (m *memoryDedup) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryDedup) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryDedup) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.keys[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryDedup) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryDedup) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestLowStockJobAnnouncesOncePerDay(t *testing.T) {
	conn := dbtest.Open(t)
	logg := testLogger()
	tenant := dbtest.Tenant(t, conn)
	dbtest.Product(t, conn, tenant.ID, "P13", 1, 11000)
	dbtest.Product(t, conn, tenant.ID, "Galão 20L", 40, 1250)

	jobIface, err := NewLowStockJob(LowStockJobParams{
		Logger:  logg,
		DB:      db.NewFromConn(conn),
		Catalog: catalog.NewRepository(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		Dedup:   &memoryDedup{keys: map[string]string{}},
	})
	require.NoError(t, err)
	job := jobIface.(*lowStockJob)
	day := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return day }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(1), countEvents(t, conn, enums.EventLowStockDetected))

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(1), countEvents(t, conn, enums.EventLowStockDetected))

	job.now = func() time.Time { return day.Add(24 * time.Hour) }
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(2), countEvents(t, conn, enums.EventLowStockDetected))
}

type fakeReorder struct {
	since time.Time
	err   error
}

func (f *fakeReorder) ComputeReorderIntervals(_ context.Context, since time.Time) (int, error) {
	f.since = since
	return 3, f.err
}

func TestReorderIntervalJobUsesHorizon(t *testing.T) {
	calc := &fakeReorder{}
	jobIface, err := NewReorderIntervalJob(ReorderIntervalJobParams{Logger: testLogger(), Customers: calc, Horizon: 48 * time.Hour})
	require.NoError(t, err)
	job := jobIface.(*reorderIntervalJob)
	now := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), calc.since)

	calc.err = errors.New("db down")
	assert.Error(t, job.Run(context.Background()))
}

func TestSubscriptionReconcileDowngradesCanceledTenants(t *testing.T) {
	conn := dbtest.Open(t)
	logg := testLogger()
	repo := tenants.NewRepository(conn)
	ctx := context.Background()

	canceled := dbtest.Tenant(t, conn)
	require.NoError(t, repo.UpdateSubscription(ctx, canceled.ID, enums.PlanTierPro, enums.SubscriptionStatusCanceled))
	pastDue := dbtest.Tenant(t, conn)
	require.NoError(t, repo.UpdateSubscription(ctx, pastDue.ID, enums.PlanTierPro, enums.SubscriptionStatusPastDue))

	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:  logg,
		DB:      db.NewFromConn(conn),
		Tenants: repo,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	got, err := repo.FindByID(ctx, canceled.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanTierFree, got.Plan)
	assert.Equal(t, enums.SubscriptionStatusActive, got.SubscriptionStatus)

	got, err = repo.FindByID(ctx, pastDue.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanTierPro, got.Plan)

	assert.Equal(t, int64(1), countEvents(t, conn, enums.EventSubscriptionUpdated))
}
