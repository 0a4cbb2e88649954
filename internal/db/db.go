package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clipkeep/clipkeep/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init initializes the SQLite database at baseDir/clipkeep.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.clipkeep.
func Init(baseDir string) (*sql.DB, error) {
	// Clipboard payloads are private; keep the whole tree user-only.
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the connection string apply to all pool connections.
	dbPath := filepath.Join(baseDir, "clipkeep.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS records (
		  id              TEXT PRIMARY KEY,
		  ts              INTEGER NOT NULL,
		  item_type       TEXT NOT NULL,
		  content         TEXT,
		  image_bytes     BLOB,
		  file_bytes      BLOB,
		  file_name       TEXT,
		  file_type_id    TEXT,
		  content_preview TEXT,
		  image_width     INTEGER NOT NULL DEFAULT 0,
		  image_height    INTEGER NOT NULL DEFAULT 0,
		  file_size_bytes INTEGER NOT NULL DEFAULT 0,
		  is_favorite     INTEGER NOT NULL DEFAULT 0,
		  favorite_order  INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_records_ts
		ON records(ts DESC);

		CREATE INDEX IF NOT EXISTS idx_records_nonfav_ts
		ON records(ts ASC)
		WHERE is_favorite = 0;

		CREATE INDEX IF NOT EXISTS idx_records_favorites
		ON records(favorite_order ASC)
		WHERE is_favorite = 1;

		CREATE TABLE IF NOT EXISTS exclusions (
		  bundle_id    TEXT PRIMARY KEY,
		  display_name TEXT NOT NULL,
		  added_at     INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: settings table for cross-process control state
	// (pause expiry, copy-back marker).
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS settings (
		  key   TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
