package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONColumn(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		valid   bool
		want    string
	}{
		{name: "nil", payload: nil},
		{name: "map", payload: map[string]any{"sku": "P13"}, valid: true, want: `{"sku":"P13"}`},
		{name: "raw", payload: json.RawMessage(`{"qty":2}`), valid: true, want: `{"qty":2}`},
		{name: "empty raw", payload: json.RawMessage{}},
		{name: "null literal", payload: []byte("null")},
		{name: "typed nil", payload: (*Envelope)(nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := JSON(tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, got.Valid)
			assert.Equal(t, tc.want, got.JSONVal)
		})
	}

	_, err := JSON(make(chan int))
	assert.Error(t, err)
}

func TestNullableHelpers(t *testing.T) {
	assert.False(t, String("  ").Valid)
	assert.Equal(t, "pix", String(" pix ").StringVal)
	assert.True(t, Int(0).Valid)
}

func TestInsertIDs(t *testing.T) {
	sale := SaleFactRow{EventID: "e1", EventType: "sale.created"}
	assert.Equal(t, "e1:sale.created", sale.InsertID())

	a := StockFactRow{EventID: "e1", ProductID: "p1"}
	b := StockFactRow{EventID: "e1", ProductID: "p2"}
	assert.NotEqual(t, a.InsertID(), b.InsertID())
}
