package store

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"galaxy-core/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Migrate applies every embedded up migration in file order. The scripts
// are idempotent, so running it against a current schema is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)
	for _, name := range names {
		body, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.Pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// CreateSchema and DropSchema manage a named schema on the database behind
// dsn. Names are restricted to plain identifiers.
func CreateSchema(ctx context.Context, dsn, schema string) error {
	return execSchemaDDL(ctx, dsn, "CREATE SCHEMA IF NOT EXISTS %s", schema)
}

func DropSchema(ctx context.Context, dsn, schema string) error {
	return execSchemaDDL(ctx, dsn, "DROP SCHEMA IF EXISTS %s CASCADE", schema)
}

// WithSearchPath returns dsn with its search_path pinned to schema.
func WithSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func execSchemaDDL(ctx context.Context, dsn, format, schema string) error {
	if !schemaNamePattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	_, err = pool.Exec(ctx, fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()))
	return err
}
