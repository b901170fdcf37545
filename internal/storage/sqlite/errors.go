package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common database conditions
var (
	// ErrNotFound indicates the database file or a required table is missing
	ErrNotFound = errors.New("not found")

	// ErrNoUsersTable indicates the Users table does not exist in the database
	ErrNoUsersTable = errors.New("no Users table")
)

// wrapDBError wraps a database error with operation context.
// It converts sql.ErrNoRows to ErrNotFound for consistent error handling.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsDuplicateColumn reports whether err is SQLite complaining that an
// ALTER TABLE ADD COLUMN target already exists. This is the one benign
// error class in a migration run: it means a previous run already applied
// the step. The driver has no typed error for it, so match the message
// ("duplicate column name: ..." from SQLite itself).
func IsDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column")
}

// IsAlreadyExists reports whether err says an index (or other schema
// object) already exists. CREATE INDEX IF NOT EXISTS normally prevents
// this, but a legacy index created without IF NOT EXISTS still lands here.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// IsLocked reports whether err is a transient lock error (SQLITE_BUSY /
// SQLITE_LOCKED) worth retrying.
func IsLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
