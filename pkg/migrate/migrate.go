// Package migrate applies the goose SQL migrations shipped with the binary
// (or read from a directory during development).
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Dialects understood by New.
const (
	DialectPostgres = string(goose.DialectPostgres)
	DialectSQLite   = string(goose.DialectSQLite3)
)

// DialectFor maps a db driver name onto the goose dialect.
func DialectFor(driver string) string {
	if driver == "sqlite" {
		return DialectSQLite
	}
	return DialectPostgres
}

// source resolves dir to the file system holding its migrations. The
// default directory is served from the embedded copy.
func source(dir string) (fs.FS, error) {
	switch dir {
	case "":
		return nil, errors.New("dir is required")
	case DefaultDir:
		return fs.Sub(embedded, "migrations")
	}
	return os.DirFS(dir), nil
}

// Migrator runs migrations against one database.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, dialect, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dialect == "" {
		dialect = DialectPostgres
	}
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.Dialect(dialect), db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration and returns one line per migration.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return describe(results), nil
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down(ctx context.Context) ([]string, error) {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return describe([]*goose.MigrationResult{result}), nil
}

// To migrates up or down until target (YYYYMMDDHHMMSS) is the current
// version.
func (m *Migrator) To(ctx context.Context, target string) ([]string, error) {
	version, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err = m.provider.UpTo(ctx, version)
	default:
		results, err = m.provider.DownTo(ctx, version)
	}
	if err != nil {
		return nil, fmt.Errorf("goose migrate to %d: %w", version, err)
	}
	return describe(results), nil
}

// Status lists every known migration with its state.
func (m *Migrator) Status(ctx context.Context) ([]string, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	lines := make([]string, 0, len(statuses))
	for _, st := range statuses {
		line := fmt.Sprintf("%d\t%s\t%s", st.Source.Version, st.State, st.Source.Path)
		if !st.AppliedAt.IsZero() {
			line += "\t" + st.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func describe(results []*goose.MigrationResult) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %d %s (%s)", r.Direction, r.Source.Version, r.Source.Path, r.Duration.Round(time.Millisecond)))
	}
	return lines
}
