package migrations

import (
	"context"
	"database/sql"
)

// authenticationMethodColumn adds the auth provider discriminator. NOT NULL
// with DEFAULT 'Local' so existing rows get a value as part of the ALTER;
// the backfill step still runs afterward to catch rows a legacy tool left
// empty (SQLite applies the default only to NULL, not to '').
func authenticationMethodColumn() Step {
	const ddl = `ALTER TABLE Users ADD COLUMN AuthenticationMethod TEXT NOT NULL DEFAULT 'Local'`
	return Step{
		Name:    "authentication-method-column",
		Summary: "add Users.AuthenticationMethod",
		SQL:     ddl,
		Apply: func(ctx context.Context, db *sql.DB) (Result, error) {
			return addColumn(ctx, db, "Users", "AuthenticationMethod", ddl)
		},
	}
}
