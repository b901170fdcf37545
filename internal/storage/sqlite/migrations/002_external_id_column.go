package migrations

import (
	"context"
	"database/sql"
)

// externalIDColumn adds the identity server's subject identifier. Nullable:
// local accounts never get one.
func externalIDColumn() Step {
	const ddl = `ALTER TABLE Users ADD COLUMN ExternalId TEXT NULL`
	return Step{
		Name:    "external-id-column",
		Summary: "add Users.ExternalId",
		SQL:     ddl,
		Apply: func(ctx context.Context, db *sql.DB) (Result, error) {
			return addColumn(ctx, db, "Users", "ExternalId", ddl)
		},
	}
}
