package migrations

import (
	"context"
	"database/sql"
)

// employeeIDColumn adds the HR system's employee number for directory
// lookups.
func employeeIDColumn() Step {
	const ddl = `ALTER TABLE Users ADD COLUMN EmployeeId TEXT NULL`
	return Step{
		Name:    "employee-id-column",
		Summary: "add Users.EmployeeId",
		SQL:     ddl,
		Apply: func(ctx context.Context, db *sql.DB) (Result, error) {
			return addColumn(ctx, db, "Users", "EmployeeId", ddl)
		},
	}
}
