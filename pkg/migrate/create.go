package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var sqlMigrationTemplate = template.Must(template.New("loggas.sql").Parse(`-- +goose Up
-- +goose StatementBegin
-- tenant-owned tables need tenant_id uuid NOT NULL REFERENCES tenants (id) and an index leading with it
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- +goose StatementEnd
`))

// CreateSQLMigration writes a timestamped goose SQL migration into dir and
// returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case dir == "":
		return "", fmt.Errorf("dir is required")
	case name == "":
		return "", fmt.Errorf("name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	before, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return "", err
	}
	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlMigrationTemplate, name, "sql"); err != nil {
		return "", fmt.Errorf("create migration %q: %w", name, err)
	}
	after, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return "", err
	}
	for _, path := range after {
		if !slices.Contains(before, path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("migration %q was not written to %s", name, dir)
}
