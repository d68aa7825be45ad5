package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// SaleFactRow mirrors the sale_facts BigQuery schema. One row per sale
// creation and one per fulfillment transition.
type SaleFactRow struct {
	EventID        string               `bigquery:"event_id"`
	EventType      string               `bigquery:"event_type"`
	OccurredAt     time.Time            `bigquery:"occurred_at"`
	TenantID       string               `bigquery:"tenant_id"`
	SaleID         string               `bigquery:"sale_id"`
	Origin         cbigquery.NullString `bigquery:"origin"`
	PaymentMethod  cbigquery.NullString `bigquery:"payment_method"`
	Status         string               `bigquery:"status"`
	PreviousStatus cbigquery.NullString `bigquery:"previous_status"`
	CustomerKey    cbigquery.NullString `bigquery:"customer_key"`
	TotalCents     cbigquery.NullInt64  `bigquery:"total_cents"`
	ItemCount      cbigquery.NullInt64  `bigquery:"item_count"`
	Items          cbigquery.NullJSON   `bigquery:"items"`
	Payload        cbigquery.NullJSON   `bigquery:"payload"`
}

// StockFactRow mirrors the stock_facts BigQuery schema. Deltas are negative
// for sales and positive for restocks; alerts carry no delta.
type StockFactRow struct {
	EventID       string              `bigquery:"event_id"`
	EventType     string              `bigquery:"event_type"`
	OccurredAt    time.Time           `bigquery:"occurred_at"`
	TenantID      string              `bigquery:"tenant_id"`
	ProductID     string              `bigquery:"product_id"`
	ProductName   string              `bigquery:"product_name"`
	QuantityDelta cbigquery.NullInt64 `bigquery:"quantity_delta"`
	UnitCostCents cbigquery.NullInt64 `bigquery:"unit_cost_cents"`
	StockAfter    cbigquery.NullInt64 `bigquery:"stock_after"`
	MinStock      cbigquery.NullInt64 `bigquery:"min_stock"`
	Payload       cbigquery.NullJSON  `bigquery:"payload"`
}

// InsertID dedupes streaming retries; a sale event yields one sale row per
// event type.
func (r SaleFactRow) InsertID() string {
	return r.EventID + ":" + r.EventType
}

// InsertID is per product since one sale event moves stock on several
// products.
func (r StockFactRow) InsertID() string {
	return r.EventID + ":" + r.ProductID
}

// String is a nullable column value; blank strings are stored as NULL.
func String(value string) cbigquery.NullString {
	value = strings.TrimSpace(value)
	return cbigquery.NullString{StringVal: value, Valid: value != ""}
}

func Int(value int64) cbigquery.NullInt64 {
	return cbigquery.NullInt64{Int64: value, Valid: true}
}

// JSON encodes payload for a JSON column. Raw bytes are taken as already
// encoded; empty input and JSON null become NULL.
func JSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
