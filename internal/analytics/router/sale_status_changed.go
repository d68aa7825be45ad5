package router

import (
	"context"
	"fmt"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

type saleStatusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func (h *saleStatusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.SaleStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for sale_status_changed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"sale_id":    event.SaleID.String(),
		"from":       string(event.From),
		"to":         string(event.To),
	})

	payloadJSON, err := types.JSON(envelope.Payload)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.ChangedAt.UTC()
	}

	row := types.SaleFactRow{
		EventID:        envelope.EventID,
		EventType:      string(envelope.EventType),
		OccurredAt:     occurredAt,
		TenantID:       event.TenantID.String(),
		SaleID:         event.SaleID.String(),
		Status:         string(event.To),
		PreviousStatus: types.String(string(event.From)),
		Payload:        payloadJSON,
	}
	if err := h.writer.InsertSaleFact(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert sale fact", err)
		return err
	}
	h.logg.Info(logCtx, "sale_status_changed fact inserted")
	return nil
}
