package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDatabasePathDefault(t *testing.T) {
	dir := t.TempDir()

	path, cfg, err := resolveDatabasePath(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, filepath.Join(dir, defaultDatabaseName), path)
}

func TestResolveDatabasePathFlagWins(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "database: from-config.db\n")

	old := dbPath
	dbPath = "/tmp/from-flag.db"
	t.Cleanup(func() { dbPath = old })

	path, cfg, err := resolveDatabasePath(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "/tmp/from-flag.db", path)
}

func TestResolveDatabasePathFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "database: custom.db\nbackup: true\n")

	path, cfg, err := resolveDatabasePath(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(dir, "custom.db"), path)
	assert.True(t, cfg.Backup)
}

func TestLoadFileConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "database: [oops\n")

	_, err := loadFileConfig(dir)
	require.Error(t, err)
}

func TestListDatabaseFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"workbot.db", "old.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	files := listDatabaseFiles(dir)
	assert.Equal(t, []string{"old.db", "workbot.db"}, files)
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o600))
}
