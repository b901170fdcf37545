package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// authenticationMethodBackfill stamps 'Local' onto any user row whose
// AuthenticationMethod is still NULL or empty. Rows created after step 4
// get the column default; this catches rows that predate it or were
// written with an explicit empty string.
func authenticationMethodBackfill() Step {
	const dml = `UPDATE Users SET AuthenticationMethod = 'Local' WHERE AuthenticationMethod IS NULL OR AuthenticationMethod = ''`
	return Step{
		Name:    "authentication-method-backfill",
		Summary: "backfill Users.AuthenticationMethod = 'Local'",
		SQL:     dml,
		Apply: func(ctx context.Context, db *sql.DB) (Result, error) {
			res, err := db.ExecContext(ctx, dml)
			if err != nil {
				return Result{}, fmt.Errorf("failed to backfill AuthenticationMethod: %w", err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return Result{}, fmt.Errorf("failed to read backfill row count: %w", err)
			}
			if rows == 0 {
				return Result{Status: StatusSkipped, Detail: "no rows needed backfill"}, nil
			}
			return Result{Status: StatusApplied, Detail: fmt.Sprintf("%d row(s) updated", rows), Rows: rows}, nil
		},
	}
}
