package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/registry"
)

// verdict is what happens to a row after one publish attempt.
type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

// attempt carries one row through resolve, publish and settle.
type attempt struct {
	event    models.OutboxEvent
	envelope outbox.PayloadEnvelope
	topic    string
	err      error
	reason   enums.OutboxDLQErrorReason
}

// dispatch publishes one row and records the outcome in tx. Only bookkeeping
// failures are returned; publish failures are stored on the row.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	a := attempt{event: event}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		a.err = err
		a.reason = enums.OutboxDLQReasonNonRetryable
		return s.settle(ctx, tx, a, verdictDeadLetter)
	}
	a.envelope = resolved.Envelope
	a.topic = resolved.Descriptor.Topic
	a.err = s.publish(ctx, a)

	return s.settle(ctx, tx, a, s.judge(&a))
}

// judge classifies a publish result, filling in the dead-letter reason.
func (s *Service) judge(a *attempt) verdict {
	if a.err == nil {
		return verdictPublished
	}
	var nonRetryable registry.NonRetryableError
	if errors.As(a.err, &nonRetryable) {
		a.reason = enums.OutboxDLQReasonNonRetryable
		return verdictDeadLetter
	}
	if a.event.AttemptCount+1 >= s.maxAttempts {
		a.reason = enums.OutboxDLQReasonMaxAttempts
		a.err = fmt.Errorf("max publish attempts reached: %w", a.err)
		return verdictDeadLetter
	}
	return verdictRetry
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, a attempt, v verdict) error {
	id := a.event.ID
	eventType := string(a.event.EventType)
	logCtx := s.logg.WithFields(ctx, s.logFields(a))

	switch v {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(logCtx, "outbox event published")

	case verdictRetry:
		if err := s.repo.MarkFailedTx(tx, id, a.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", id, err)
		}
		s.metrics.IncFailed(eventType)
		s.logg.Warn(s.logg.WithField(logCtx, "error", a.err.Error()), "outbox publish failed, will retry")

	case verdictDeadLetter:
		if err := s.dlq.ParkTx(tx, outbox.NewDeadLetter(a.event, a.reason, a.err)); err != nil {
			return fmt.Errorf("park %s: %w", id, err)
		}
		if err := s.repo.MarkTerminalTx(tx, id, a.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", id, err)
		}
		s.metrics.IncDeadLettered(eventType, string(a.reason))
		s.logg.Warn(s.logg.WithField(logCtx, "error", a.err.Error()), "outbox event dead-lettered")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, a attempt) error {
	pub := s.topics.Topic(a.topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", a.topic))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       a.event.Payload,
		Attributes: messageAttributes(a.event, a.envelope),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", a.topic))
	}
	_, err := result.Get(ctx)
	return err
}

// messageAttributes lets subscribers route and dedupe without decoding the body.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	attrs := map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"event_version":  strconv.Itoa(envelope.Version),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if event.TenantID != nil {
		attrs["tenant_id"] = event.TenantID.String()
	}
	return attrs
}

func (s *Service) logFields(a attempt) map[string]any {
	fields := map[string]any{
		"outbox_id":     a.event.ID.String(),
		"event_type":    a.event.EventType,
		"aggregate_id":  a.event.AggregateID.String(),
		"attempt_count": a.event.AttemptCount + 1,
	}
	if a.event.TenantID != nil {
		fields["tenant_id"] = a.event.TenantID.String()
	}
	if a.envelope.EventID != "" {
		fields["event_id"] = a.envelope.EventID
	}
	if a.topic != "" {
		fields["topic"] = a.topic
	}
	if a.reason != "" {
		fields["dlq_reason"] = a.reason
	}
	return fields
}
