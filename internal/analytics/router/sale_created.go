package router

import (
	"context"
	"fmt"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

type saleCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

// Handle writes the sale fact and one negative stock fact per line.
func (h *saleCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.SaleCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for sale_created")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"sale_id":    event.SaleID.String(),
		"tenant_id":  event.TenantID.String(),
	})

	row, err := buildSaleCreatedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build sale fact", err)
		return err
	}
	if err := h.writer.InsertSaleFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sale fact", err)
		return err
	}

	stockRows := make([]types.StockFactRow, 0, len(event.Lines))
	for _, line := range event.Lines {
		stockRows = append(stockRows, types.StockFactRow{
			EventID:       envelope.EventID,
			EventType:     string(envelope.EventType),
			OccurredAt:    envelope.OccurredAt,
			TenantID:      event.TenantID.String(),
			ProductID:     line.ProductID.String(),
			ProductName:   line.ProductName,
			QuantityDelta: types.Int(-int64(line.Quantity)),
		})
	}
	if err := h.writer.InsertStockFacts(logCtx, stockRows); err != nil {
		h.logg.Error(logCtx, "failed to insert stock facts", err)
		return err
	}

	h.logg.Info(logCtx, "sale_created facts inserted")
	return nil
}

func buildSaleCreatedRow(envelope types.Envelope, event *payloads.SaleCreatedEvent) (types.SaleFactRow, error) {
	itemsJSON, err := types.JSON(event.Lines)
	if err != nil {
		return types.SaleFactRow{}, fmt.Errorf("encode items json: %w", err)
	}
	payloadJSON, err := types.JSON(envelope.Payload)
	if err != nil {
		return types.SaleFactRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	var items int64
	for _, line := range event.Lines {
		items += int64(line.Quantity)
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.CreatedAt.UTC()
	}

	return types.SaleFactRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    occurredAt,
		TenantID:      event.TenantID.String(),
		SaleID:        event.SaleID.String(),
		Origin:        types.String(string(event.Origin)),
		PaymentMethod: types.String(string(event.PaymentMethod)),
		Status:        string(event.Status),
		CustomerKey:   types.String(event.CustomerKey),
		TotalCents:    types.Int(event.TotalCents),
		ItemCount:     types.Int(items),
		Items:         itemsJSON,
		Payload:       payloadJSON,
	}, nil
}
