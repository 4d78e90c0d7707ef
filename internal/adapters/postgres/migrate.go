package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema files in lexical order. Every file is idempotent.
//
// Two instances starting together can race on CREATE TABLE IF NOT EXISTS, which Postgres reports
// as a unique violation on its catalog; the loser retries once.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	err := applyMigrations(ctx, pool)
	if pe, ok := AsPgError(err); ok && pe.Code == UniqueViolationCode {
		err = applyMigrations(ctx, pool)
	}
	return err
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, name := range names {
			sql, err := migrationFiles.ReadFile(name)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
		}
		return nil
	})
}
