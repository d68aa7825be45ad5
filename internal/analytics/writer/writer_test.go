package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	pkgbigquery "github.com/loggas/loggas-backend/pkg/bigquery"
)

type insertCall struct {
	table string
	rows  int
}

type fakeInserter struct {
	errs  []error
	calls []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rows: len(rows)})
	if len(f.calls) <= len(f.errs) {
		return f.errs[len(f.calls)-1]
	}
	return nil
}

func newTestWriter(t *testing.T, cfg Config, errs ...error) (*Writer, *fakeInserter, *[]time.Duration) {
	t.Helper()
	cfg.SalesTable, cfg.StockTable = "sale_facts", "stock_facts"
	w, err := New(&pkgbigquery.Client{}, cfg)
	require.NoError(t, err)

	fake := &fakeInserter{errs: errs}
	waits := &[]time.Duration{}
	w.client = fake
	w.wait = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return w, fake, waits
}

func unavailable() error { return &googleapi.Error{Code: http.StatusServiceUnavailable} }

func TestNewValidatesTables(t *testing.T) {
	_, err := New(nil, Config{SalesTable: "sale_facts", StockTable: "stock_facts"})
	assert.Error(t, err)
	_, err = New(&pkgbigquery.Client{}, Config{SalesTable: " ", StockTable: "stock_facts"})
	assert.Error(t, err)
	_, err = New(&pkgbigquery.Client{}, Config{SalesTable: "sale_facts"})
	assert.Error(t, err)

	w, err := New(&pkgbigquery.Client{}, Config{SalesTable: "sale_facts", StockTable: "stock_facts", InitialBackoff: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 1, w.batchSize)
	assert.Equal(t, defaultMaxAttempts, w.maxAttempts)
	assert.Equal(t, 5*time.Second, w.maxBackoff, "ceiling never below the first delay")
}

func TestTransientFailureIsRetriedWithBackoff(t *testing.T) {
	w, fake, waits := newTestWriter(t, Config{MaxAttempts: 4}, unavailable(), unavailable())

	require.NoError(t, w.InsertSaleFact(context.Background(), types.SaleFactRow{EventID: "e1"}))
	require.Len(t, fake.calls, 3)
	assert.Equal(t, "sale_facts", fake.calls[2].table)
	assert.Equal(t, []time.Duration{defaultBackoff, 2 * defaultBackoff}, *waits)
	assert.Empty(t, w.sales.rows)
}

func TestAttemptsAreBounded(t *testing.T) {
	w, fake, _ := newTestWriter(t, Config{MaxAttempts: 2}, unavailable(), unavailable(), unavailable())

	err := w.InsertSaleFact(context.Background(), types.SaleFactRow{EventID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 2")
	assert.Len(t, fake.calls, 2)
	assert.Len(t, w.sales.rows, 1, "rows stay buffered for a later flush")
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	w, fake, waits := newTestWriter(t, Config{}, &googleapi.Error{Code: http.StatusBadRequest})

	err := w.InsertStockFacts(context.Background(), []types.StockFactRow{{EventID: "e1"}})
	require.Error(t, err)
	assert.Len(t, fake.calls, 1)
	assert.Empty(t, *waits)
}

func TestBatchingAndFlush(t *testing.T) {
	w, fake, _ := newTestWriter(t, Config{BatchSize: 3})
	ctx := context.Background()

	require.NoError(t, w.InsertStockFacts(ctx, []types.StockFactRow{{EventID: "e1", ProductID: "p1"}, {EventID: "e1", ProductID: "p2"}}))
	require.NoError(t, w.InsertStockFacts(ctx, nil))
	require.NoError(t, w.InsertSaleFact(ctx, types.SaleFactRow{EventID: "e1"}))
	assert.Empty(t, fake.calls)

	require.NoError(t, w.InsertStockFacts(ctx, []types.StockFactRow{{EventID: "e2", ProductID: "p1"}}))
	require.Equal(t, []insertCall{{table: "stock_facts", rows: 3}}, fake.calls)

	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, insertCall{table: "sale_facts", rows: 1}, fake.calls[1])
	assert.Len(t, fake.calls, 2, "empty stock buffer is not sent")
}

func TestCanceledContextStopsInsert(t *testing.T) {
	w, fake, _ := newTestWriter(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.InsertSaleFact(ctx, types.SaleFactRow{EventID: "e1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.calls)
}

func TestRetryable(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	invalid := &googleapi.Error{Code: http.StatusBadRequest}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "http 429", err: transient, want: true},
		{name: "http 400", err: invalid},
		{name: "wrapped http 503", err: fmt.Errorf("put: %w", unavailable()), want: true},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "down"), want: true},
		{name: "grpc invalid", err: status.Error(codes.InvalidArgument, "bad")},
		{name: "multi all transient", err: cbigquery.MultiError{transient, unavailable()}, want: true},
		{name: "multi mixed", err: cbigquery.MultiError{transient, invalid}},
		{name: "multi empty", err: cbigquery.MultiError{}},
		{name: "row errors transient", err: cbigquery.PutMultiError{{Errors: cbigquery.MultiError{transient}}}, want: true},
		{name: "row errors with a bad row", err: cbigquery.PutMultiError{
			{Errors: cbigquery.MultiError{transient}},
			{Errors: cbigquery.MultiError{invalid}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryable(tc.err))
		})
	}
}
