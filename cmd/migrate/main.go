package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/loggas/loggas-backend/internal/boot"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// command either works on files alone or, with a migrator, on the database.
type command struct {
	needsDB bool
	run     func(ctx context.Context, opts options, m *migrate.Migrator) ([]string, error)
}

var commands = map[string]command{
	"up": {needsDB: true, run: func(ctx context.Context, _ options, m *migrate.Migrator) ([]string, error) {
		return m.Up(ctx)
	}},
	"down": {needsDB: true, run: func(ctx context.Context, _ options, m *migrate.Migrator) ([]string, error) {
		return m.Down(ctx)
	}},
	"status": {needsDB: true, run: func(ctx context.Context, _ options, m *migrate.Migrator) ([]string, error) {
		return m.Status(ctx)
	}},
	"version": {needsDB: true, run: func(ctx context.Context, opts options, m *migrate.Migrator) ([]string, error) {
		if opts.version == "" {
			return nil, errors.New("missing -version")
		}
		return m.To(ctx, opts.version)
	}},
	"create": {run: func(_ context.Context, opts options, _ *migrate.Migrator) ([]string, error) {
		if opts.name == "" {
			return nil, errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return nil, err
		}
		return []string{"created " + path}, nil
	}},
	"validate": {run: func(_ context.Context, opts options, _ *migrate.Migrator) ([]string, error) {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return nil, err
		}
		return []string{"migrations ok"}, nil
	}},
}

func commandNames() string {
	return strings.Join(slices.Sorted(maps.Keys(commands)), "|")
}

func main() {
	var opts options
	cmdName := flag.String("cmd", "up", "migration command: "+commandNames())
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name, for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS), for -cmd=version")
	flag.Parse()

	cmd, ok := commands[*cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q, want one of %s\n", *cmdName, commandNames())
		os.Exit(2)
	}

	proc := boot.Start("migrate")
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	logg := proc.Logger
	ctx = logg.WithFields(ctx, map[string]any{"cmd": *cmdName, "dir": opts.dir})

	var migrator *migrate.Migrator
	if cmd.needsDB {
		cfg := proc.Config
		client, err := db.New(ctx, cfg.DB, logg)
		proc.Must("database", err)
		proc.OnClose("database", client.Close)

		sqlDB, err := client.DB().DB()
		proc.Must("sql database", err)
		dialect := migrate.DialectFor(cfg.DB.Driver)
		migrator, err = migrate.New(sqlDB, dialect, opts.dir)
		proc.Must("migrator", err)
		ctx = logg.WithField(ctx, "dialect", dialect)
	}

	if err := execute(ctx, cmd, opts, migrator, os.Stdout); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		proc.Exit(1)
	}
	logg.Info(ctx, "migrate command finished")
}

func execute(ctx context.Context, cmd command, opts options, m *migrate.Migrator, out io.Writer) error {
	lines, err := cmd.run(ctx, opts, m)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
