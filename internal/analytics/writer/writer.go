// Package writer streams fact rows into BigQuery, buffering them per table
// and retrying inserts that fail for transient reasons.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loggas/loggas-backend/internal/analytics/types"
	pkgbigquery "github.com/loggas/loggas-backend/pkg/bigquery"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 250 * time.Millisecond
	defaultMaxBackoff  = 2 * time.Second
)

// Config names the fact tables and tunes batching and retries. Zero values
// fall back to a batch of one and three attempts.
type Config struct {
	SalesTable     string
	StockTable     string
	BatchSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type inserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// buffer holds rows for one table until the batch fills.
type buffer[T any] struct {
	table string
	rows  []T
}

func (b *buffer[T]) pending() []any {
	out := make([]any, len(b.rows))
	for i := range b.rows {
		out[i] = &b.rows[i]
	}
	return out
}

// Writer is not safe for concurrent use; the analytics worker feeds it from
// a single receive loop.
type Writer struct {
	client      inserter
	batchSize   int
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	wait        func(context.Context, time.Duration) error

	sales buffer[types.SaleFactRow]
	stock buffer[types.StockFactRow]
}

func New(client *pkgbigquery.Client, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	sales, stock := strings.TrimSpace(cfg.SalesTable), strings.TrimSpace(cfg.StockTable)
	switch {
	case sales == "":
		return nil, errors.New("sales table is required")
	case stock == "":
		return nil, errors.New("stock table is required")
	}

	w := &Writer{
		client:      client,
		batchSize:   max(cfg.BatchSize, 1),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.InitialBackoff,
		maxBackoff:  cfg.MaxBackoff,
		wait:        sleep,
		sales:       buffer[types.SaleFactRow]{table: sales},
		stock:       buffer[types.StockFactRow]{table: stock},
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.backoff <= 0 {
		w.backoff = defaultBackoff
	}
	if w.maxBackoff <= 0 {
		w.maxBackoff = defaultMaxBackoff
	}
	w.maxBackoff = max(w.maxBackoff, w.backoff)
	return w, nil
}

func (w *Writer) InsertSaleFact(ctx context.Context, row types.SaleFactRow) error {
	return add(ctx, w, &w.sales, row)
}

func (w *Writer) InsertStockFacts(ctx context.Context, rows []types.StockFactRow) error {
	return add(ctx, w, &w.stock, rows...)
}

// Flush writes whatever is buffered, stopping at the first table that fails.
func (w *Writer) Flush(ctx context.Context) error {
	if err := flush(ctx, w, &w.sales); err != nil {
		return err
	}
	return flush(ctx, w, &w.stock)
}

func add[T any](ctx context.Context, w *Writer, b *buffer[T], rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	b.rows = append(b.rows, rows...)
	if len(b.rows) < w.batchSize {
		return nil
	}
	return flush(ctx, w, b)
}

// flush keeps the rows buffered when the insert fails so a later Flush can
// try again.
func flush[T any](ctx context.Context, w *Writer, b *buffer[T]) error {
	if len(b.rows) == 0 {
		return nil
	}
	if err := w.insert(ctx, b.table, b.pending()); err != nil {
		return err
	}
	b.rows = b.rows[:0]
	return nil
}

func (w *Writer) insert(ctx context.Context, table string, rows []any) error {
	delay := w.backoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.maxAttempts || !retryable(err) {
			return fmt.Errorf("insert %d rows into %s (attempt %d): %w", len(rows), table, attempt, err)
		}
		if err := w.wait(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, w.maxBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
