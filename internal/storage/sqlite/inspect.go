package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Column describes one row of PRAGMA table_info output.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

// UserSample is one row of the post-migration spot check.
type UserSample struct {
	Username             string `json:"username"`
	AuthenticationMethod string `json:"authentication_method"`
}

// TableExists reports whether table exists in the database.
func TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapDBError("check table", err)
	}
	return true, nil
}

// TableColumns returns the columns of table in declaration order.
func TableColumns(ctx context.Context, db *sql.DB, table string) (cols []Column, retErr error) {
	// Table names cannot be bound in PRAGMA statements; callers pass
	// internal constants, not user input.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, wrapDBError("read table info", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && retErr == nil {
			retErr = wrapDBError("close table info rows", closeErr)
		}
	}()

	for rows.Next() {
		var (
			cid     int
			col     Column
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notnull, &dflt, &pk); err != nil {
			return nil, wrapDBError("scan column info", err)
		}
		col.NotNull = notnull != 0
		col.PrimaryKey = pk != 0
		if dflt.Valid {
			col.Default = dflt.String
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("read column info", err)
	}
	return cols, nil
}

// ColumnExists reports whether table has a column named column.
func ColumnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	cols, err := TableColumns(ctx, db, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c.Name == column {
			return true, nil
		}
	}
	return false, nil
}

// TableIndexes returns the names of the indexes attached to table,
// including ones created implicitly for UNIQUE constraints.
func TableIndexes(ctx context.Context, db *sql.DB, table string) (names []string, retErr error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return nil, wrapDBError("read index list", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && retErr == nil {
			retErr = wrapDBError("close index list rows", closeErr)
		}
	}()

	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, wrapDBError("scan index list", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("read index list", err)
	}
	return names, nil
}

// IndexExists reports whether an index named name exists on table.
func IndexExists(ctx context.Context, db *sql.DB, table, name string) (bool, error) {
	names, err := TableIndexes(ctx, db, table)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// CountUsers returns the number of rows in the Users table.
func CountUsers(ctx context.Context, db *sql.DB) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Users").Scan(&n); err != nil {
		return 0, wrapDBError("count users", err)
	}
	return n, nil
}

// SampleUsers returns up to limit Username/AuthenticationMethod pairs for
// the verification summary.
func SampleUsers(ctx context.Context, db *sql.DB, limit int) (samples []UserSample, retErr error) {
	rows, err := db.QueryContext(ctx,
		"SELECT Username, AuthenticationMethod FROM Users LIMIT ?", limit)
	if err != nil {
		return nil, wrapDBError("sample users", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && retErr == nil {
			retErr = wrapDBError("close sample rows", closeErr)
		}
	}()

	for rows.Next() {
		var s UserSample
		var username, method sql.NullString
		if err := rows.Scan(&username, &method); err != nil {
			return nil, wrapDBError("scan sample user", err)
		}
		s.Username = username.String
		s.AuthenticationMethod = method.String
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("read sample users", err)
	}
	return samples, nil
}

// CountUnsetAuthMethods returns how many Users rows still have a NULL or
// empty AuthenticationMethod, i.e. how many rows the backfill would touch.
// Returns 0 without error when the column does not exist yet.
func CountUnsetAuthMethods(ctx context.Context, db *sql.DB) (int64, error) {
	exists, err := ColumnExists(ctx, db, "Users", "AuthenticationMethod")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	var n int64
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM Users WHERE AuthenticationMethod IS NULL OR AuthenticationMethod = ''").Scan(&n)
	if err != nil {
		return 0, wrapDBError("count unset auth methods", err)
	}
	return n, nil
}
