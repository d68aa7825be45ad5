package advisor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/ledger"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/pkg/db/dbtest"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

type fakeGenerator struct {
	generateFn func(ctx context.Context, prompt string) (string, error)
	prompts    []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.generateFn(ctx, prompt)
}

func newService(t *testing.T, conn *gorm.DB, gen *fakeGenerator, enabled bool) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Generator:    gen,
		CatalogRepo:  catalog.NewRepository(conn),
		LedgerRepo:   ledger.NewRepository(conn),
		SalesRepo:    sales.NewRepository(conn),
		CustomerRepo: customers.NewRepository(conn),
		Logger:       logger.New(logger.Options{ServiceName: "advisor-test", Output: io.Discard}),
		Enabled:      enabled,
	})
	require.NoError(t, err)
	return svc
}

func TestFinancialInsightsUsesModelText(t *testing.T) {
	conn := dbtest.Open(t)
	tenant := dbtest.Tenant(t, conn)
	dbtest.Product(t, conn, tenant.ID, "Gas P13", 1, 11000)
	gen := &fakeGenerator{generateFn: func(context.Context, string) (string, error) { return "  Saúde boa.  ", nil }}
	svc := newService(t, conn, gen, true)

	text, err := svc.FinancialInsights(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Saúde boa.", text)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `"name":"Gas P13"`)
	assert.Contains(t, gen.prompts[0], `"sell":"110.00"`)
}

func TestFallbacks(t *testing.T) {
	conn := dbtest.Open(t)
	tenant := dbtest.Tenant(t, conn)
	ctx := context.Background()

	customer := &models.Customer{TenantID: tenant.ID, CustomerKey: "k1", Name: "Ana", Status: enums.CustomerStatusActive}
	require.NoError(t, conn.Create(customer).Error)
	address := "Rua B, 20"
	sale := &models.Sale{
		TenantID:        tenant.ID,
		CustomerRef:     "0",
		CustomerName:    "Ana",
		CustomerAddress: &address,
		TotalCents:      1500,
		PaymentMethod:   enums.PaymentMethodPix,
		Status:          enums.SaleStatusPreparing,
		Origin:          enums.SaleOriginOnline,
	}
	require.NoError(t, conn.Create(sale).Error)

	failing := &fakeGenerator{generateFn: func(context.Context, string) (string, error) { return "", errors.New("quota exceeded") }}
	empty := &fakeGenerator{generateFn: func(context.Context, string) (string, error) { return "   ", nil }}

	for name, gen := range map[string]*fakeGenerator{"error": failing, "empty": empty} {
		svc := newService(t, conn, gen, true)

		text, err := svc.FinancialInsights(ctx, tenant.ID)
		require.NoError(t, err, name)
		assert.Equal(t, FallbackInsights, text, name)

		text, err = svc.CustomerProjection(ctx, tenant.ID, customer.ID)
		require.NoError(t, err, name)
		assert.Equal(t, FallbackProjection, text, name)

		text, err = svc.OptimizeRoute(ctx, tenant.ID, []uuid.UUID{sale.ID})
		require.NoError(t, err, name)
		assert.Equal(t, FallbackRoute, text, name)
	}
	assert.Contains(t, failing.prompts[2], "Rua B, 20")
}

func TestDisabledAdvisorSkipsGeneration(t *testing.T) {
	conn := dbtest.Open(t)
	tenant := dbtest.Tenant(t, conn)
	gen := &fakeGenerator{generateFn: func(context.Context, string) (string, error) { return "never", nil }}
	svc := newService(t, conn, gen, false)

	text, err := svc.FinancialInsights(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, FallbackInsights, text)
	assert.Empty(t, gen.prompts)
}

func TestInputErrors(t *testing.T) {
	conn := dbtest.Open(t)
	tenant := dbtest.Tenant(t, conn)
	gen := &fakeGenerator{generateFn: func(context.Context, string) (string, error) { return "ok", nil }}
	svc := newService(t, conn, gen, true)
	ctx := context.Background()

	_, err := svc.CustomerProjection(ctx, tenant.ID, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.OptimizeRoute(ctx, tenant.ID, nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.OptimizeRoute(ctx, tenant.ID, []uuid.UUID{uuid.New()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
