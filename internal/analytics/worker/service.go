package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/loggas/loggas-backend/internal/analytics/router"
	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/idempotency"
)

// ConsumerScope namespaces the analytics worker's delivery records.
const ConsumerScope = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	return fn(ctx, envelope)
}

type deliveryGuard interface {
	Begin(ctx context.Context, id string) (idempotency.Outcome, error)
	Complete(ctx context.Context, id string) error
	Abort(ctx context.Context, id string) error
}

type disposition int

const (
	ack disposition = iota
	nack
)

// Service pulls change feed messages and hands each event to the fact
// handlers at most once per event id. Poison messages are acked and logged;
// transient failures are nacked so Pub/Sub redelivers.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	guard        deliveryGuard
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, guard deliveryGuard, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case guard == nil:
		return nil, errors.New("delivery guard is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, guard: guard, logg: logg}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) disposition {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeMessage(msg.Data, msg.Attributes)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed change feed message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"event_version":  envelope.Version,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"tenant_id":      envelope.TenantID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	outcome, err := s.guard.Begin(ctx, envelope.EventID)
	if err != nil {
		s.logg.Error(ctx, "delivery guard unavailable", err)
		return nack
	}
	switch outcome {
	case idempotency.Duplicate:
		s.logg.Debug(ctx, "event already applied")
		return ack
	case idempotency.InFlight:
		s.logg.Info(ctx, "event held by another worker, redelivering later")
		return nack
	}

	if err := s.handler.Handle(ctx, envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Debug(ctx, "event not tracked by analytics")
			s.complete(ctx, envelope.EventID)
			return ack
		}
		s.logg.Error(ctx, "analytics handler failed", err)
		if abortErr := s.guard.Abort(context.WithoutCancel(ctx), envelope.EventID); abortErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", abortErr.Error()), "failed to release delivery claim")
		}
		return nack
	}

	s.complete(ctx, envelope.EventID)
	s.logg.Info(ctx, "change feed event applied")
	return ack
}

func (s *Service) complete(ctx context.Context, eventID string) {
	if err := s.guard.Complete(context.WithoutCancel(ctx), eventID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to record applied event")
	}
}
