package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

var (
	ErrNoDecoder    = errors.New("no decoder registered")
	ErrEmptyPayload = errors.New("event payload is empty")
)

// Decoder turns the data of an envelope into its typed payload.
type Decoder func(data json.RawMessage) (any, error)

// JSON decodes into a fresh *T.
func JSON[T any]() Decoder {
	return func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry resolves (event type, schema version) to a payload
// decoder. It is built once at startup and only read afterwards.
type DecoderRegistry struct {
	decoders map[decoderKey]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]Decoder)}
}

// DomainPayloads registers every payload the services emit today. Bump the
// version and register a second decoder when a payload changes shape.
func DomainPayloads() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventSaleCreated, 1, JSON[payloads.SaleCreatedEvent]())
	r.Register(enums.EventSaleStatusChanged, 1, JSON[payloads.SaleStatusChangedEvent]())
	r.Register(enums.EventProductRestocked, 1, JSON[payloads.ProductRestockedEvent]())
	r.Register(enums.EventLowStockDetected, 1, JSON[payloads.LowStockDetectedEvent]())
	r.Register(enums.EventSubscriptionUpdated, 1, JSON[payloads.SubscriptionUpdatedEvent]())
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) {
	r.decoders[decoderKey{eventType: eventType, version: version}] = decoder
}

// Supports reports whether any version of eventType can be decoded.
func (r *DecoderRegistry) Supports(eventType enums.OutboxEventType) bool {
	for key := range r.decoders {
		if key.eventType == eventType {
			return true
		}
	}
	return false
}

// Decode runs the decoder for the event type and version. Version 0 is read
// as 1 since early envelopes were written without one.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	if version == 0 {
		version = 1
	}
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPayload, eventType)
	}
	payload, err := decoder(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode %s@v%d payload: %w", eventType, version, err)
	}
	return payload, nil
}
