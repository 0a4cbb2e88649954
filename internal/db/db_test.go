package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	_, err = os.Stat(filepath.Join(tmpDir, "clipkeep.db"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(tmpDir, "exports"))
	require.NoError(t, err)
}

func TestInit_WALMode(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode;").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestInit_SchemaVersion(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	version, err := GetUserVersion(database)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestInit_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()

	database, err := Init(tmpDir)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// Reopening an existing database must not rerun migrations destructively.
	database, err = Init(tmpDir)
	require.NoError(t, err)
	defer database.Close()

	version, err := GetUserVersion(database)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion, version)
}
