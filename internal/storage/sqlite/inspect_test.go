package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err, "failed to open database")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE Users (
			Id INTEGER PRIMARY KEY AUTOINCREMENT,
			Username TEXT NOT NULL UNIQUE,
			AuthenticationMethod TEXT NOT NULL DEFAULT 'Local'
		)
	`)
	require.NoError(t, err, "failed to create Users table")
	return db
}

func TestTableExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	exists, err := TableExists(ctx, db, "Users")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = TableExists(ctx, db, "Nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTableColumns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cols, err := TableColumns(ctx, db, "Users")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "Id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)

	assert.Equal(t, "Username", cols[1].Name)
	assert.Equal(t, "TEXT", cols[1].Type)
	assert.True(t, cols[1].NotNull)

	assert.Equal(t, "AuthenticationMethod", cols[2].Name)
	assert.Equal(t, "'Local'", cols[2].Default)
}

func TestColumnExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	exists, err := ColumnExists(ctx, db, "Users", "Username")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = ColumnExists(ctx, db, "Users", "DisplayName")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`CREATE INDEX IX_Users_AuthenticationMethod ON Users (AuthenticationMethod)`)
	require.NoError(t, err)

	exists, err := IndexExists(ctx, db, "Users", "IX_Users_AuthenticationMethod")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = IndexExists(ctx, db, "Users", "IX_Users_ExternalId")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCountAndSampleUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`
		INSERT INTO Users (Username, AuthenticationMethod) VALUES
		('alice', 'Local'), ('bob', 'AzureAD'), ('carol', 'Local')
	`)
	require.NoError(t, err)

	count, err := CountUsers(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	samples, err := SampleUsers(ctx, db, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "alice", samples[0].Username)
	assert.Equal(t, "Local", samples[0].AuthenticationMethod)
}

func TestCountUnsetAuthMethods(t *testing.T) {
	ctx := context.Background()

	t.Run("column missing", func(t *testing.T) {
		db, err := sql.Open("sqlite3", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
		defer db.Close()

		_, err = db.Exec(`CREATE TABLE Users (Id INTEGER PRIMARY KEY, Username TEXT)`)
		require.NoError(t, err)

		n, err := CountUnsetAuthMethods(ctx, db)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unset rows counted", func(t *testing.T) {
		db, err := sql.Open("sqlite3", ":memory:")
		require.NoError(t, err)
		db.SetMaxOpenConns(1)
		defer db.Close()

		_, err = db.Exec(`CREATE TABLE Users (Id INTEGER PRIMARY KEY, Username TEXT, AuthenticationMethod TEXT)`)
		require.NoError(t, err)
		_, err = db.Exec(`
			INSERT INTO Users (Username, AuthenticationMethod) VALUES
			('alice', NULL), ('bob', ''), ('carol', 'Local')
		`)
		require.NoError(t, err)

		n, err := CountUnsetAuthMethods(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
