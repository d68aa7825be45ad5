package router

import (
	"context"

	"github.com/loggas/loggas-backend/internal/analytics/types"
)

type fakeWriter struct {
	sales []types.SaleFactRow
	stock []types.StockFactRow
	err   error
}

func (f *fakeWriter) InsertSaleFact(_ context.Context, row types.SaleFactRow) error {
	if f.err != nil {
		return f.err
	}
	f.sales = append(f.sales, row)
	return nil
}

func (f *fakeWriter) InsertStockFacts(_ context.Context, rows []types.StockFactRow) error {
	if f.err != nil {
		return f.err
	}
	f.stock = append(f.stock, rows...)
	return nil
}
