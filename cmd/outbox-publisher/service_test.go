package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
	"github.com/loggas/loggas-backend/pkg/outbox/registry"
)

type harness struct {
	svc     *Service
	repo    *fakeRepo
	dlq     *fakeDLQRepo
	topic   *fakeTopic
	metrics *fakeMetrics
}

func newHarness(t *testing.T, resolver registryResolver, maxAttempts int, rows ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		repo:    &fakeRepo{events: rows},
		dlq:     &fakeDLQRepo{},
		topic:   &fakeTopic{},
		metrics: &fakeMetrics{},
	}
	svc, err := NewService(ServiceParams{
		Outbox:        config.OutboxConfig{BatchSize: 10, PollIntervalMS: 50, MaxAttempts: maxAttempts},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            fakeDB{},
		Topics:        &fakeTopics{topics: map[string]*fakeTopic{"loggas-domain-events": h.topic}},
		Repository:    h.repo,
		Registry:      resolver,
		DLQRepository: h.dlq,
		Metrics:       h.metrics,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestNewServiceDefaults(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	h := newHarness(t, domainRegistry("loggas-domain-events"), 0)
	assert.Equal(t, fallbackMaxAttempts, h.svc.maxAttempts)
	assert.Equal(t, 10, h.svc.batchSize)
	assert.Equal(t, 50*time.Millisecond, h.svc.poll)
}

func TestProcessBatchKeepsGoingAfterTransientFailure(t *testing.T) {
	first, second := saleRow(t, "evt-1"), saleRow(t, "evt-2")
	h := newHarness(t, domainRegistry("loggas-domain-events"), 5, first, second)
	h.topic.errs = []error{errors.New("unavailable"), nil}

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	assert.Equal(t, 1, h.metrics.failed)
	assert.Equal(t, 1, h.metrics.published)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchEmpty(t *testing.T) {
	h := newHarness(t, domainRegistry("loggas-domain-events"), 5)

	processed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestPublishedMessageAttributes(t *testing.T) {
	tenantID := uuid.New()
	row := saleRow(t, "evt-attrs")
	row.TenantID = &tenantID
	row.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, domainRegistry("loggas-domain-events"), 5, row)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.topic.sent, 1)

	msg := h.topic.sent[0]
	assert.JSONEq(t, string(row.Payload), string(msg.Data))
	assert.Equal(t, map[string]string{
		"event_id":       row.ID.String(),
		"event_type":     string(enums.EventSaleCreated),
		"event_version":  "1",
		"aggregate_type": string(enums.AggregateSale),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     "2026-03-01T12:00:00Z",
		"tenant_id":      tenantID.String(),
	}, msg.Attributes)
}

func TestUnresolvableEventIsDeadLettered(t *testing.T) {
	row := saleRow(t, "evt-bad")
	h := newHarness(t, &fakeRegistry{err: registry.NewNonRetryableError(errors.New("bad payload"))}, 5, row)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "bad payload")
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.terminal)
	assert.Empty(t, h.topic.sent)
	assert.Equal(t, 1, h.metrics.dead)
}

func TestLastAttemptIsDeadLettered(t *testing.T) {
	row := saleRow(t, "evt-retry")
	row.AttemptCount = 2
	h := newHarness(t, domainRegistry("loggas-domain-events"), 3, row)
	h.topic.errs = []error{errors.New("pubsub down")}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	assert.Contains(t, *h.dlq.entries[0].ErrorMessage, "pubsub down")
	assert.Empty(t, h.repo.failed)
	assert.Len(t, h.repo.terminal, 1)
}

func TestUnknownTopicIsDeadLettered(t *testing.T) {
	row := saleRow(t, "evt-topic")
	h := newHarness(t, domainRegistry("not-provisioned"), 5, row)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
	assert.Contains(t, *h.dlq.entries[0].ErrorMessage, "not-provisioned")
}

func TestBookkeepingFailureAbortsBatch(t *testing.T) {
	row := saleRow(t, "evt-mark")
	h := newHarness(t, domainRegistry("loggas-domain-events"), 5, row)
	h.repo.markErr = errors.New("connection reset")

	_, err := h.svc.processBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark published")
}

func TestJudge(t *testing.T) {
	h := newHarness(t, domainRegistry("loggas-domain-events"), 3)
	cases := []struct {
		name     string
		attempts int
		err      error
		want     verdict
		reason   enums.OutboxDLQErrorReason
	}{
		{"ok", 0, nil, verdictPublished, ""},
		{"transient", 0, errors.New("timeout"), verdictRetry, ""},
		{"transient at limit", 2, errors.New("timeout"), verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts},
		{"non retryable", 0, registry.NewNonRetryableError(errors.New("schema")), verdictDeadLetter, enums.OutboxDLQReasonNonRetryable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := attempt{event: models.OutboxEvent{AttemptCount: tc.attempts}, err: tc.err}
			assert.Equal(t, tc.want, h.svc.judge(&a))
			assert.Equal(t, tc.reason, a.reason)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, domainRegistry("loggas-domain-events"), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, h.svc.Run(ctx), context.Canceled)
}

func TestRunFailsWhenPubSubUnavailable(t *testing.T) {
	h := newHarness(t, domainRegistry("loggas-domain-events"), 5)
	h.svc.topics = &fakeTopics{pingErr: errors.New("permission denied")}

	err := h.svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
}

func TestNextBackoffCaps(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Second, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, time.Second, maxBackoff))
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, maxBackoff))
}

func TestJitteredStaysInWindow(t *testing.T) {
	assert.Zero(t, jittered(0))
	for range 20 {
		got := jittered(time.Second)
		assert.GreaterOrEqual(t, got, time.Second)
		assert.Less(t, got, time.Second+jitterWindow)
	}
}

func domainRegistry(topic string) *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventSaleCreated,
			Topic:         topic,
			AggregateType: enums.AggregateSale,
		},
		Envelope: outbox.PayloadEnvelope{Version: 1},
		Payload:  &payloads.SaleCreatedEvent{},
	}}
}

func saleRow(tb testing.TB, eventID string) models.OutboxEvent {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(tb, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	markErr   error
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeTopics struct {
	topics  map[string]*fakeTopic
	pingErr error
}

func (f *fakeTopics) Ping(context.Context) error { return f.pingErr }

func (f *fakeTopics) Topic(name string) publisher {
	if t, ok := f.topics[name]; ok {
		return t
	}
	return nil
}

// fakeTopic answers publishes with errs in order, then success.
type fakeTopic struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return fakeResult{err: err}
}

type fakeResult struct{ err error }

func (f fakeResult) Get(context.Context) (string, error) { return "srv-1", f.err }

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) ParkTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeMetrics struct {
	published, failed, dead int
}

func (f *fakeMetrics) IncPublished(string)            { f.published++ }
func (f *fakeMetrics) IncFailed(string)               { f.failed++ }
func (f *fakeMetrics) IncDeadLettered(string, string) { f.dead++ }
