// Package migrations holds the fixed, ordered schema changes that bring a
// WorkBot database up to the identity-server layout. Every step is
// idempotent: columns are checked before ALTER, indexes use IF NOT EXISTS,
// and the backfill UPDATE matches zero rows on a second run.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workbot/wbm/internal/storage/sqlite"
)

// Status classifies the outcome of one step.
type Status string

const (
	// StatusApplied means the step changed the schema or data.
	StatusApplied Status = "applied"
	// StatusSkipped means the step found its work already done.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of a single step.
type Result struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
	Rows   int64  `json:"rows,omitempty"`
}

// Step is one schema change in the fixed plan.
type Step struct {
	Name    string // stable identifier, e.g. "display-name-column"
	Summary string // one-line description for reports
	SQL     string // primary statement, shown by --dry-run

	Apply func(ctx context.Context, db *sql.DB) (Result, error)
}

// Steps returns the ordered migration plan. The order matters: the
// AuthenticationMethod index and backfill require the column from step 4.
func Steps() []Step {
	return []Step{
		displayNameColumn(),
		externalIDColumn(),
		employeeIDColumn(),
		authenticationMethodColumn(),
		identityIndex("IX_Users_ExternalId", "ExternalId"),
		identityIndex("IX_Users_EmployeeId", "EmployeeId"),
		identityIndex("IX_Users_AuthenticationMethod", "AuthenticationMethod"),
		authenticationMethodBackfill(),
	}
}

// StepObserver is notified after each step completes. n is 1-based.
// err is non-nil only for fatal errors; benign "already exists" outcomes
// arrive as StatusSkipped results.
type StepObserver func(n, total int, step Step, res Result, err error)

// Run executes the plan in order, stopping at the first fatal error.
// Completed steps stay applied; SQLite DDL is per-statement, so there is no
// whole-run transaction to roll back.
func Run(ctx context.Context, db *sql.DB, observe StepObserver) error {
	steps := Steps()
	for i, step := range steps {
		res, err := step.Apply(ctx, db)
		if observe != nil {
			observe(i+1, len(steps), step, res, err)
		}
		if err != nil {
			return fmt.Errorf("step %d/%d (%s): %w", i+1, len(steps), step.Name, err)
		}
	}
	return nil
}

// addColumn applies one ALTER TABLE ADD COLUMN guarded by a table_info
// check. A duplicate-column error can still surface if the column was
// created between the check and the ALTER (or by a legacy tool); it is
// classified benign either way.
func addColumn(ctx context.Context, db *sql.DB, table, column, ddl string) (Result, error) {
	exists, err := sqlite.ColumnExists(ctx, db, table, column)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return Result{Status: StatusSkipped, Detail: "column already exists"}, nil
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		if sqlite.IsDuplicateColumn(err) {
			return Result{Status: StatusSkipped, Detail: "column already exists"}, nil
		}
		return Result{}, fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return Result{Status: StatusApplied}, nil
}
