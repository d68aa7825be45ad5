package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/registry"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by fact handlers.
type Writer interface {
	InsertSaleFact(ctx context.Context, row types.SaleFactRow) error
	InsertStockFacts(ctx context.Context, rows []types.StockFactRow) error
}

// Handler receives an envelope plus its decoded payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router dispatches change feed envelopes to the handler of their event type.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventSaleCreated:       &saleCreatedHandler{writer: writer, logg: logg},
		enums.EventSaleStatusChanged: &saleStatusChangedHandler{writer: writer, logg: logg},
		enums.EventProductRestocked:  &productRestockedHandler{writer: writer, logg: logg},
		enums.EventLowStockDetected:  &lowStockDetectedHandler{writer: writer, logg: logg},
	}
	for event, custom := range overrides {
		if _, ok := handlers[event]; ok && custom != nil {
			handlers[event] = custom
		}
	}

	return &Router{handlers: handlers, decoders: registry.DomainPayloads(), logg: logg}, nil
}

// Handle decodes the payload at the envelope's schema version and dispatches
// it. Event types or versions this worker does not know are reported as
// ErrUnsupportedEventType.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := r.decoders.Decode(envelope.EventType, envelope.Version, envelope.Payload)
	if errors.Is(err, registry.ErrNoDecoder) {
		return fmt.Errorf("%w: %v", ErrUnsupportedEventType, err)
	}
	if err != nil {
		return err
	}
	return handler.Handle(ctx, envelope, payload)
}
