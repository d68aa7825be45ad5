package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/loggas/loggas-backend/pkg/config"
)

type protoRow struct {
	EventID    string    `bigquery:"event_id"`
	OccurredAt time.Time `bigquery:"occurred_at"`
	Quantity   int64     `bigquery:"quantity"`
}

type keyedRow struct {
	ID string `bigquery:"id"`
}

func (r keyedRow) InsertID() string { return r.ID }

func TestRequiredTables(t *testing.T) {
	tables := requiredTables(
		config.BigQueryConfig{SalesFactsTable: " sale_facts ", StockFactsTable: "stock_facts"},
		[]TableSpec{
			{Name: "sale_facts", Row: protoRow{}, PartitionField: "occurred_at"},
			{Name: "unrelated", Row: protoRow{}},
			{Name: "stock_facts"},
		},
	)

	require.Len(t, tables, 2)
	require.NotNil(t, tables["sale_facts"])
	assert.Equal(t, "occurred_at", tables["sale_facts"].PartitionField)
	assert.Nil(t, tables["stock_facts"], "spec without a row prototype cannot create")
	assert.NotContains(t, tables, "unrelated")

	assert.Empty(t, requiredTables(config.BigQueryConfig{}, nil))
}

func TestTableMetadataInfersSchemaAndPartition(t *testing.T) {
	meta, err := tableMetadata(TableSpec{Name: "stock_facts", Row: protoRow{}, PartitionField: "occurred_at"})
	require.NoError(t, err)
	require.Len(t, meta.Schema, 3)
	assert.Equal(t, bigquery.TimestampFieldType, meta.Schema[1].Type)
	require.NotNil(t, meta.TimePartitioning)
	assert.Equal(t, "occurred_at", meta.TimePartitioning.Field)

	meta, err = tableMetadata(TableSpec{Name: "plain", Row: protoRow{}})
	require.NoError(t, err)
	assert.Nil(t, meta.TimePartitioning)

	_, err = tableMetadata(TableSpec{Name: "bad", Row: 42})
	assert.Error(t, err)
}

func TestWithInsertIDs(t *testing.T) {
	rows := withInsertIDs([]any{keyedRow{ID: "evt-1"}, &protoRow{EventID: "evt-2"}, keyedRow{}})

	saver, ok := rows[0].(*bigquery.StructSaver)
	require.True(t, ok)
	assert.Equal(t, "evt-1", saver.InsertID)
	assert.IsType(t, &protoRow{}, rows[1])
	assert.IsType(t, keyedRow{}, rows[2], "blank insert id is sent as-is")
}

func TestAPIStatusHelpers(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})
	assert.True(t, isNotFound(notFound))
	assert.False(t, isConflict(notFound))
	assert.True(t, isConflict(&googleapi.Error{Code: http.StatusConflict}))
	assert.False(t, isNotFound(errors.New("timeout")))
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	assert.ErrorIs(t, c.InsertRows(context.Background(), "sale_facts", []any{protoRow{}}), errClientNotInitialized)
	assert.NoError(t, c.Close())
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "loggas"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{}, nil)
	assert.ErrorIs(t, err, errDatasetRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "loggas"}, nil)
	assert.ErrorIs(t, err, errTableNameRequired)
}
