package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)

	embeddedFiles, err := fs.Glob(embedded, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, embeddedFiles, len(onDisk))
}

func TestSalesMigrationGuardsInvariants(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_sales_tables.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS sales",
		"CREATE TABLE IF NOT EXISTS sale_items",
		"CHECK (quantity > 0)",
		"sales_tenant_idempotency_key",
	} {
		require.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestRunUpOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	migrator, err := New(sqlDB, DialectSQLite, DefaultDir)
	require.NoError(t, err)

	applied, err := migrator.Up(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 8)

	status, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 8)
	require.Contains(t, status[0], "applied")

	again, err := migrator.Up(ctx)
	require.NoError(t, err)
	require.Empty(t, again)

	var count int64
	require.NoError(t, conn.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'ledger_entries'").Scan(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestDialectFor(t *testing.T) {
	require.Equal(t, DialectSQLite, DialectFor("sqlite"))
	require.Equal(t, DialectPostgres, DialectFor("postgres"))
	require.Equal(t, DialectPostgres, DialectFor(""))
}

func TestCreateSQLMigrationPassesValidation(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "add depot column")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_depot_column.sql"), path)

	require.NoError(t, ValidateDir(dir))
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n\n-- +goose Down\nSELECT 1;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644))

	err := ValidateDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "StatementBegin")
}

func TestValidateDirReportsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("20250101000000_ok.sql", "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	write("20250101000000_same_version.sql", "-- +goose Up\n-- +goose Down\n")
	write("Bad-Name.sql", "-- +goose Up\n-- +goose Down\n")
	write("20250102000000_no_down.sql", "-- +goose Up\nSELECT 1;\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	for _, want := range []string{"Bad-Name.sql", "already used", "missing \"-- +goose Down\""} {
		require.ErrorContains(t, err, want)
	}
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil, DialectPostgres, DefaultDir)
	require.Error(t, err)
}
