package types

import (
	"encoding/json"
	"time"

	"github.com/loggas/loggas-backend/pkg/enums"
)

// Envelope is a change feed message reduced to what fact handlers need.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	Version       int                       `json:"version"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	TenantID      string                    `json:"tenant_id,omitempty"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
