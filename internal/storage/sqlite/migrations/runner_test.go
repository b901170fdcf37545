package migrations

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/workbot/wbm/internal/storage/sqlite"
)

// setupLegacyDB creates an in-memory database with the pre-identity Users
// schema: the shape WorkBot deployments had before this tool existed.
func setupLegacyDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// One connection so every statement sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE Users (
			Id INTEGER PRIMARY KEY AUTOINCREMENT,
			Username TEXT NOT NULL UNIQUE,
			PasswordHash TEXT,
			CreatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		t.Fatalf("failed to create legacy Users table: %v", err)
	}

	_, err = db.Exec(`INSERT INTO Users (Username, PasswordHash) VALUES ('alice', 'x'), ('bob', 'y')`)
	if err != nil {
		t.Fatalf("failed to seed users: %v", err)
	}
	return db
}

func TestRunAppliesFullPlan(t *testing.T) {
	db := setupLegacyDB(t)
	ctx := context.Background()

	var results []Result
	err := Run(ctx, db, func(n, total int, step Step, res Result, err error) {
		if err != nil {
			t.Fatalf("step %d (%s) failed: %v", n, step.Name, err)
		}
		results = append(results, res)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != len(Steps()) {
		t.Fatalf("expected %d step results, got %d", len(Steps()), len(results))
	}

	// Steps 1-7 change the schema; step 8 finds nothing to backfill because
	// the ALTER in step 4 already stamped existing rows with the default.
	for i, res := range results[:7] {
		if res.Status != StatusApplied {
			t.Errorf("step %d: expected applied, got %s (%s)", i+1, res.Status, res.Detail)
		}
	}
	if results[7].Status != StatusSkipped {
		t.Errorf("backfill: expected skipped on fresh migration, got %s", results[7].Status)
	}

	for _, col := range []string{"DisplayName", "ExternalId", "EmployeeId", "AuthenticationMethod"} {
		exists, err := sqlite.ColumnExists(ctx, db, "Users", col)
		if err != nil {
			t.Fatalf("ColumnExists(%s): %v", col, err)
		}
		if !exists {
			t.Errorf("column %s missing after migration", col)
		}
	}
	for _, idx := range []string{"IX_Users_ExternalId", "IX_Users_EmployeeId", "IX_Users_AuthenticationMethod"} {
		exists, err := sqlite.IndexExists(ctx, db, "Users", idx)
		if err != nil {
			t.Fatalf("IndexExists(%s): %v", idx, err)
		}
		if !exists {
			t.Errorf("index %s missing after migration", idx)
		}
	}

	var method string
	if err := db.QueryRow(`SELECT AuthenticationMethod FROM Users WHERE Username = 'alice'`).Scan(&method); err != nil {
		t.Fatalf("failed to read alice: %v", err)
	}
	if method != "Local" {
		t.Errorf("expected alice AuthenticationMethod 'Local', got %q", method)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := setupLegacyDB(t)
	ctx := context.Background()

	if err := Run(ctx, db, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	var statuses []Status
	err := Run(ctx, db, func(n, total int, step Step, res Result, err error) {
		if err != nil {
			t.Fatalf("second run step %d (%s) failed: %v", n, step.Name, err)
		}
		statuses = append(statuses, res.Status)
	})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	for i, status := range statuses {
		if status != StatusSkipped {
			t.Errorf("second run step %d: expected skipped, got %s", i+1, status)
		}
	}
}

func TestRunAbortsWithoutUsersTable(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	var observed int
	err = Run(context.Background(), db, func(n, total int, step Step, res Result, err error) {
		observed++
	})
	if err == nil {
		t.Fatal("expected Run to fail without a Users table")
	}
	if observed != 1 {
		t.Errorf("expected run to stop after the first step, observed %d steps", observed)
	}
}

func TestAddColumnSkipsExisting(t *testing.T) {
	db := setupLegacyDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`ALTER TABLE Users ADD COLUMN DisplayName TEXT NULL`); err != nil {
		t.Fatalf("failed to pre-create column: %v", err)
	}

	res, err := displayNameColumn().Apply(ctx, db)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Status != StatusSkipped {
		t.Errorf("expected skipped for pre-existing column, got %s", res.Status)
	}
}

func TestBackfillUpdatesLegacyRows(t *testing.T) {
	db := setupLegacyDB(t)
	ctx := context.Background()

	// Simulate a legacy tool that added the column without NOT NULL/DEFAULT
	// and left rows NULL or empty.
	if _, err := db.Exec(`ALTER TABLE Users ADD COLUMN AuthenticationMethod TEXT`); err != nil {
		t.Fatalf("failed to add legacy column: %v", err)
	}
	if _, err := db.Exec(`UPDATE Users SET AuthenticationMethod = '' WHERE Username = 'bob'`); err != nil {
		t.Fatalf("failed to blank bob: %v", err)
	}

	res, err := authenticationMethodBackfill().Apply(ctx, db)
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected applied, got %s", res.Status)
	}
	if res.Rows != 2 {
		t.Errorf("expected 2 rows backfilled, got %d", res.Rows)
	}

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM Users WHERE AuthenticationMethod = 'Local'`).Scan(&n)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 Local users, got %d", n)
	}
}

func TestIndexStepSkipsExisting(t *testing.T) {
	db := setupLegacyDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`ALTER TABLE Users ADD COLUMN ExternalId TEXT NULL`); err != nil {
		t.Fatalf("failed to add column: %v", err)
	}
	if _, err := db.Exec(`CREATE INDEX IX_Users_ExternalId ON Users (ExternalId)`); err != nil {
		t.Fatalf("failed to pre-create index: %v", err)
	}

	res, err := identityIndex("IX_Users_ExternalId", "ExternalId").Apply(ctx, db)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Status != StatusSkipped {
		t.Errorf("expected skipped for pre-existing index, got %s", res.Status)
	}
}
