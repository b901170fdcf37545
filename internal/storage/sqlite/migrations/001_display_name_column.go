package migrations

import (
	"context"
	"database/sql"
)

// displayNameColumn adds the human-readable name the identity server
// reports, distinct from the login Username.
func displayNameColumn() Step {
	const ddl = `ALTER TABLE Users ADD COLUMN DisplayName TEXT NULL`
	return Step{
		Name:    "display-name-column",
		Summary: "add Users.DisplayName",
		SQL:     ddl,
		Apply: func(ctx context.Context, db *sql.DB) (Result, error) {
			return addColumn(ctx, db, "Users", "DisplayName", ddl)
		},
	}
}
