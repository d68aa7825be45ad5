package storefront

import (
	"context"
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
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/internal/users"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/db/dbtest"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
)

type fixture struct {
	svc    Service
	conn   *gorm.DB
	tenant *models.Tenant
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	logg := logger.New(logger.Options{ServiceName: "storefront-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	tenantSvc, err := tenants.NewService(tenants.NewRepository(conn))
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.ServiceParams{
		Repo:       catalog.NewRepository(conn),
		DB:         client,
		LedgerRepo: ledger.NewRepository(conn),
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)
	salesSvc, err := sales.NewService(sales.ServiceParams{
		Repo:         sales.NewRepository(conn),
		DB:           client,
		CatalogRepo:  catalog.NewRepository(conn),
		LedgerRepo:   ledger.NewRepository(conn),
		CustomerRepo: customers.NewRepository(conn),
		Outbox:       emitter,
		Logger:       logg,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tenants: tenantSvc,
		Catalog: catalogSvc,
		Sales:   salesSvc,
		Users:   users.NewRepository(conn),
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, tenant: dbtest.Tenant(t, conn)}
}

func TestListProductsHidesOfflineItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dbtest.Product(t, f.conn, f.tenant.ID, "Gas P13", 10, 11000)
	hidden := dbtest.Product(t, f.conn, f.tenant.ID, "Gas P45", 5, 42000)
	require.NoError(t, f.conn.Model(hidden).Update("show_online", false).Error)

	store, err := f.svc.GetStore(ctx, f.tenant.Slug)
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, store.ID)

	products, err := f.svc.ListProducts(ctx, f.tenant.Slug)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Gas P13", products[0].Name)
	assert.Equal(t, 10, products[0].Available)

	_, err = f.svc.ListProducts(ctx, "nope")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestGuestCheckout(t *testing.T) {
	f := newFixture(t)
	product := dbtest.Product(t, f.conn, f.tenant.ID, "Water 20L", 8, 1500)

	sale, err := f.svc.Checkout(context.Background(), f.tenant.Slug, CheckoutInput{
		Name:    "Carlos",
		Phone:   "(11) 98888-7777",
		Address: "Rua A, 10",
		Lines:   []CheckoutLine{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.SaleOriginOnline, sale.Origin)
	assert.Equal(t, enums.SaleStatusPending, sale.Status)
	assert.Equal(t, enums.PaymentMethodOnline, sale.PaymentMethod)
	assert.Equal(t, int64(3000), sale.TotalCents)
	require.NotNil(t, sale.CustomerKey)
	assert.Equal(t, "phone:11988887777", *sale.CustomerKey)

	_, err = f.svc.Checkout(context.Background(), f.tenant.Slug, CheckoutInput{
		Name:  "Carlos",
		Lines: []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCustomerCheckoutUsesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.Product(t, f.conn, f.tenant.ID, "Water 20L", 8, 1500)

	phone := "11 97777-1111"
	user, err := users.NewRepository(f.conn).Create(ctx, users.NewUser{
		Email:        "ana@mail.com",
		PasswordHash: "x",
		Name:         "Ana",
		Phone:        &phone,
		Role:         enums.UserRoleCustomer,
	})
	require.NoError(t, err)

	sale, err := f.svc.Checkout(ctx, f.tenant.Slug, CheckoutInput{
		BuyerUserID:   &user.ID,
		PaymentMethod: enums.PaymentMethodPix,
		Lines:         []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", sale.CustomerName)
	assert.Equal(t, user.ID.String(), sale.CustomerRef)
	require.NotNil(t, sale.BuyerUserID)
	assert.Equal(t, user.ID, *sale.BuyerUserID)

	stranger := uuid.New()
	_, err = f.svc.Checkout(ctx, f.tenant.Slug, CheckoutInput{
		BuyerUserID: &stranger,
		Lines:       []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestClosedStoreRejectsOrders(t *testing.T) {
	f := newFixture(t)
	product := dbtest.Product(t, f.conn, f.tenant.ID, "Water 20L", 8, 1500)
	require.NoError(t, f.conn.Model(f.tenant).Update("storefront_open", false).Error)

	_, err := f.svc.Checkout(context.Background(), f.tenant.Slug, CheckoutInput{
		Name:  "Carlos",
		Phone: "11988887777",
		Lines: []CheckoutLine{{ProductID: product.ID, Quantity: 1}},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	var stock int
	require.NoError(t, f.conn.Model(&models.Product{}).Select("stock").Where("id = ?", product.ID).Scan(&stock).Error)
	assert.Equal(t, 8, stock)
}
