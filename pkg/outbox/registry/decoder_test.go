package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

func TestDomainPayloadsDecodesKnownEvents(t *testing.T) {
	reg := DomainPayloads()

	out, err := reg.Decode(enums.EventSaleStatusChanged, 1, json.RawMessage(`{"from":"shipped","to":"completed"}`))
	require.NoError(t, err)
	_, ok := out.(*payloads.SaleStatusChangedEvent)
	assert.True(t, ok, "unexpected payload type %T", out)

	// envelopes written before versioning decode as v1
	_, err = reg.Decode(enums.EventLowStockDetected, 0, json.RawMessage(`{}`))
	assert.NoError(t, err)
	assert.True(t, reg.Supports(enums.EventSubscriptionUpdated))
}

func TestDecoderRegistryVersions(t *testing.T) {
	type v2 struct {
		Units int `json:"units"`
	}
	reg := DomainPayloads()
	reg.Register(enums.EventProductRestocked, 2, JSON[v2]())

	out, err := reg.Decode(enums.EventProductRestocked, 2, json.RawMessage(`{"units":12}`))
	require.NoError(t, err)
	assert.Equal(t, 12, out.(*v2).Units)

	_, err = reg.Decode(enums.EventProductRestocked, 3, json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrNoDecoder))
}

func TestDecoderRegistryRejectsEmptyAndMalformed(t *testing.T) {
	reg := DomainPayloads()

	_, err := reg.Decode(enums.EventSaleCreated, 1, json.RawMessage(" null "))
	assert.True(t, errors.Is(err, ErrEmptyPayload))

	_, err = reg.Decode(enums.EventSaleCreated, 1, json.RawMessage(`{"sale_id":`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyPayload))
}
