package router

import (
	"context"
	"fmt"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

type productRestockedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *productRestockedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ProductRestockedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for product_restocked")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"product_id": event.ProductID.String(),
		"quantity":   event.Quantity,
	})

	payloadJSON, err := types.JSON(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.RestockedAt.UTC()
	}

	row := types.StockFactRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    occurredAt,
		TenantID:      event.TenantID.String(),
		ProductID:     event.ProductID.String(),
		ProductName:   event.ProductName,
		QuantityDelta: types.Int(int64(event.Quantity)),
		UnitCostCents: types.Int(event.UnitCostCents),
		StockAfter:    types.Int(int64(event.StockAfter)),
		Payload:       payloadJSON,
	}
	if err := h.writer.InsertStockFacts(logCtx, []types.StockFactRow{row}); err != nil {
		h.logg.Error(logCtx, "failed to insert stock fact", err)
		return err
	}
	h.logg.Info(logCtx, "product_restocked fact inserted")
	return nil
}

type lowStockDetectedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *lowStockDetectedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.LowStockDetectedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for low_stock_detected")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"product_id": event.ProductID.String(),
	})

	payloadJSON, err := types.JSON(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.DetectedAt.UTC()
	}

	row := types.StockFactRow{
		EventID:     envelope.EventID,
		EventType:   string(envelope.EventType),
		OccurredAt:  occurredAt,
		TenantID:    event.TenantID.String(),
		ProductID:   event.ProductID.String(),
		ProductName: event.ProductName,
		StockAfter:  types.Int(int64(event.Stock)),
		MinStock:    types.Int(int64(event.MinStock)),
		Payload:     payloadJSON,
	}
	if err := h.writer.InsertStockFacts(logCtx, []types.StockFactRow{row}); err != nil {
		h.logg.Error(logCtx, "failed to insert stock fact", err)
		return err
	}
	h.logg.Info(logCtx, "low_stock_detected fact inserted")
	return nil
}
