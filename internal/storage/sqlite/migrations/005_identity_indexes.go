package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workbot/wbm/internal/storage/sqlite"
)

// identityIndex creates one of the lookup indexes the identity server
// queries by. IF NOT EXISTS makes the statement idempotent, but the step
// still reports skipped vs applied, so it checks index_list first.
func identityIndex(name, column string) Step {
	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON Users (%s)`, name, column)
	return Step{
		Name:    fmt.Sprintf("index-%s", column),
		Summary: fmt.Sprintf("create index %s", name),
		SQL:     ddl,
		Apply: func(ctx context.Context, db *sql.DB) (Result, error) {
			exists, err := sqlite.IndexExists(ctx, db, "Users", name)
			if err != nil {
				return Result{}, err
			}
			if exists {
				return Result{Status: StatusSkipped, Detail: "index already exists"}, nil
			}

			if _, err := db.ExecContext(ctx, ddl); err != nil {
				// A legacy index created without IF NOT EXISTS under a
				// different rowid can still collide here.
				if sqlite.IsAlreadyExists(err) {
					return Result{Status: StatusSkipped, Detail: "index already exists"}, nil
				}
				return Result{}, fmt.Errorf("failed to create index %s: %w", name, err)
			}
			return Result{Status: StatusApplied}, nil
		},
	}
}
