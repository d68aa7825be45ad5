package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithTenantID(ctx, "tenant-9")
	log.Error(ctx, "sale.failed", errors.New("stock exhausted"))

	entry := lastEntry(t, buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "tenant-9", entry["tenant_id"])
	assert.Equal(t, "stock exhausted", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestWithFieldsDoesNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "cron-worker", Output: buf})

	parent := log.WithField(context.Background(), "job", "low_stock")
	child := log.WithFields(parent, map[string]any{"product_id": "p-1", "stock": 2})

	log.Info(child, "low_stock.alert")
	entry := lastEntry(t, buf)
	assert.Equal(t, "low_stock", entry["job"])
	assert.Equal(t, float64(2), entry["stock"])

	log.Info(parent, "low_stock.done")
	entry = lastEntry(t, buf)
	assert.NotContains(t, entry, "product_id")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf}).Warn(context.Background(), "slow query")
	assert.NotContains(t, lastEntry(t, buf), "stack")

	buf.Reset()
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "slow query")
	assert.Contains(t, lastEntry(t, buf), "stack")
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, Level: ParseLevel("warn")}).Debug(context.Background(), "noise")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}
