package outbox

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/pkg/db/dbtest"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

func newTestService(t *testing.T) (*Service, *Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	return NewService(repo, logg), repo, conn
}

func emitSale(t *testing.T, svc *Service, conn *gorm.DB, tenantID uuid.UUID) {
	t.Helper()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventSaleCreated,
			AggregateType: enums.AggregateSale,
			AggregateID:   uuid.New(),
			TenantID:      &tenantID,
			Data:          payloads.SaleCreatedEvent{TenantID: tenantID, TotalCents: 500},
		})
	})
	require.NoError(t, err)
}

func TestEmitWritesEnvelope(t *testing.T) {
	svc, repo, conn := newTestService(t)
	tenant := dbtest.Tenant(t, conn)
	emitSale(t, svc, conn, tenant.ID)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventSaleCreated, rows[0].EventType)
	require.NotNil(t, rows[0].TenantID)
	assert.Equal(t, tenant.ID, *rows[0].TenantID)
	assert.Contains(t, string(rows[0].Payload), `"version":1`)
	assert.Contains(t, string(rows[0].Payload), `"total_cents":500`)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	svc, repo, conn := newTestService(t)
	tenant := dbtest.Tenant(t, conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventProductRestocked,
			AggregateType: enums.AggregateProduct,
			AggregateID:   uuid.New(),
			TenantID:      &tenant.ID,
			Data:          payloads.ProductRestockedEvent{Quantity: 3},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	svc, _, conn := newTestService(t)
	valid := DomainEvent{EventType: enums.EventSaleCreated, AggregateType: enums.AggregateSale, AggregateID: uuid.New()}
	assert.ErrorIs(t, svc.Emit(context.Background(), nil, valid), errTxRequired)

	for name, mutate := range map[string]func(*DomainEvent){
		"event type":     func(e *DomainEvent) { e.EventType = "order_created" },
		"aggregate type": func(e *DomainEvent) { e.AggregateType = "order" },
		"aggregate id":   func(e *DomainEvent) { e.AggregateID = uuid.Nil },
		"version":        func(e *DomainEvent) { e.Version = -1 },
		"payload":        func(e *DomainEvent) { e.Data = make(chan int) },
	} {
		t.Run(name, func(t *testing.T) {
			event := valid
			mutate(&event)
			assert.Error(t, svc.Emit(context.Background(), conn, event))
		})
	}
}

func TestEmitUsesRowIDAsEventID(t *testing.T) {
	svc, repo, conn := newTestService(t)
	tenant := dbtest.Tenant(t, conn)
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	svc.now = func() time.Time { return fixed }
	emitSale(t, svc, conn, tenant.ID)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, rows[0].ID.String(), env.EventID)
	assert.Equal(t, fixed.UTC(), env.OccurredAt)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
}

func TestRepositoryPublishBookkeeping(t *testing.T) {
	svc, repo, conn := newTestService(t)
	tenant := dbtest.Tenant(t, conn)
	emitSale(t, svc, conn, tenant.ID)
	emitSale(t, svc, conn, tenant.ID)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("timeout")))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "timeout", *pending[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, rows[1].ID, errors.New("dead"), 3))
	pending, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeletePublishedBefore(t *testing.T) {
	svc, repo, conn := newTestService(t)
	tenant := dbtest.Tenant(t, conn)
	emitSale(t, svc, conn, tenant.ID)
	emitSale(t, svc, conn, tenant.ID)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	old := time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", rows[0].ID).Update("published_at", old).Error)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(-24*time.Hour), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.DeletePublishedBefore(context.Background(), time.Now(), 0)
	assert.Error(t, err)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestNewDeadLetterTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", maxDLQErrorLen)
	entry := NewDeadLetter(models.OutboxEvent{ID: uuid.New(), AttemptCount: 3}, enums.OutboxDLQReasonMaxAttempts, errors.New(long))
	require.NotNil(t, entry.ErrorMessage)
	assert.LessOrEqual(t, len(*entry.ErrorMessage), maxDLQErrorLen)
	assert.True(t, utf8.ValidString(*entry.ErrorMessage))
	assert.Equal(t, 3, entry.AttemptCount)

	assert.Nil(t, NewDeadLetter(models.OutboxEvent{}, enums.OutboxDLQReasonNonRetryable, nil).ErrorMessage)
}

func TestDLQRepositoryParkAndRequeue(t *testing.T) {
	conn := dbtest.Open(t)
	events := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	ctx := context.Background()

	event := models.OutboxEvent{
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
	}
	require.NoError(t, events.Insert(conn, event))
	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored).Error)
	require.NoError(t, events.MarkTerminalTx(conn, stored.ID, errors.New("pubsub down"), 5))
	require.NoError(t, dlq.ParkTx(conn, NewDeadLetter(stored, enums.OutboxDLQReasonMaxAttempts, errors.New("pubsub down"))))

	parked, err := dlq.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, stored.ID, parked[0].EventID)

	require.NoError(t, dlq.Requeue(ctx, stored.ID))
	require.NoError(t, conn.First(&stored, "id = ?", stored.ID).Error)
	assert.Zero(t, stored.AttemptCount)
	assert.Nil(t, stored.LastError)

	parked, err = dlq.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, parked)

	assert.ErrorIs(t, dlq.Requeue(ctx, stored.ID), ErrNotParked)
}
