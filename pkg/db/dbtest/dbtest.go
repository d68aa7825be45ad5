// Package dbtest opens throwaway sqlite databases with the model schema applied.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
)

// Open returns a migrated in-memory database private to the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the db.Client used by services.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t))
}

// Tenant inserts a tenant with a unique slug.
func Tenant(t testing.TB, conn *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		CompanyName:        "Gas Test",
		Slug:               "gas-" + uuid.NewString()[:8],
		StorefrontOpen:     true,
		Plan:               enums.PlanTierFree,
		SubscriptionStatus: enums.SubscriptionStatusActive,
	}
	if err := conn.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

// Product inserts an active product for tenantID.
func Product(t testing.TB, conn *gorm.DB, tenantID uuid.UUID, name string, stock int, sellCents int64) *models.Product {
	t.Helper()
	product := &models.Product{
		TenantID:       tenantID,
		Name:           name,
		Category:       enums.ProductCategoryGas,
		SKU:            "SKU-" + uuid.NewString()[:8],
		Stock:          stock,
		MinStock:       2,
		CostPriceCents: sellCents / 2,
		SellPriceCents: sellCents,
		Unit:           "un",
		Active:         true,
		ShowOnline:     true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// BeforeNextUpdate runs fn once, just before the next UPDATE against table
// reaches the database. Tests use it to commit a concurrent write between a
// service's read and its write.
func BeforeNextUpdate(t testing.TB, conn *gorm.DB, table string, fn func()) {
	t.Helper()
	BeforeNextUpdateTx(t, conn, table, func(*gorm.DB) { fn() })
}

// BeforeNextUpdateTx is BeforeNextUpdate for writes issued inside a
// transaction. fn receives a fresh session on the same connection, since the
// single sqlite connection is held by the open transaction.
func BeforeNextUpdateTx(t testing.TB, conn *gorm.DB, table string, fn func(tx *gorm.DB)) {
	t.Helper()
	name := "dbtest:before_update:" + uuid.NewString()
	var fired atomic.Bool
	err := conn.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		fn(tx.Session(&gorm.Session{NewDB: true}))
	})
	if err != nil {
		t.Fatalf("register update callback: %v", err)
	}
	t.Cleanup(func() { _ = conn.Callback().Update().Remove(name) })
}
