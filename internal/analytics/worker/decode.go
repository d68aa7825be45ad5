package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/outbox"
)

var errMalformed = errors.New("malformed change feed message")

// decodeMessage rebuilds the envelope from the message body and the
// attributes the outbox publisher stamps on it. The body wins where both
// carry a value; attributes fill in for bodies written by older publishers.
func decodeMessage(data []byte, attrs map[string]string) (types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &stored); err != nil {
		return types.Envelope{}, fmt.Errorf("%w: body: %v", errMalformed, err)
	}
	attr := func(name string) string { return strings.TrimSpace(attrs[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("%w: event_type: %v", errMalformed, err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return types.Envelope{}, fmt.Errorf("%w: aggregate_type: %v", errMalformed, err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return types.Envelope{}, fmt.Errorf("%w: aggregate_id missing", errMalformed)
	}

	eventID := firstNonBlank(stored.EventID, attr("event_id"))
	if _, err := uuid.Parse(eventID); err != nil {
		return types.Envelope{}, fmt.Errorf("%w: event_id %q", errMalformed, eventID)
	}

	version := stored.Version
	if version == 0 {
		version, _ = strconv.Atoi(attr("event_version"))
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		occurredAt, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}

	tenantID := attr("tenant_id")
	if tenantID == "" && stored.TenantID != nil {
		tenantID = stored.TenantID.String()
	}

	return types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		Version:       version,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		TenantID:      tenantID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
