package db

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/clipkeep/clipkeep/internal/errors"
)

// Cross-process control state lives in the settings table so the capture
// watcher observes pauses and copy-backs issued from a separate CLI or MCP
// process over the same database file.
const (
	pauseUntilKey = "pause_until"
	copyMarkerKey = "copy_marker"
)

// SetPauseUntil stores the pause expiry instant (unix milliseconds). Zero
// clears the pause.
func SetPauseUntil(ctx context.Context, db *sql.DB, untilMillis int64) error {
	return setSetting(ctx, db, pauseUntilKey, strconv.FormatInt(untilMillis, 10))
}

// PauseUntil returns the stored pause expiry instant, or zero when no pause
// has ever been set.
func PauseUntil(ctx context.Context, db *sql.DB) (int64, error) {
	value, err := getSetting(ctx, db, pauseUntilKey)
	if err != nil || value == "" {
		return 0, err
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return millis, nil
}

// SetCopyMarker records the ID of a record just written back to the
// clipboard, so the watcher can recognize the resulting revision as its own
// payload rather than a fresh external change.
func SetCopyMarker(ctx context.Context, db *sql.DB, id string) error {
	return setSetting(ctx, db, copyMarkerKey, id)
}

// TakeCopyMarker returns the pending copy-back record ID and clears it in
// the same statement. Returns empty when no copy-back is pending.
func TakeCopyMarker(ctx context.Context, db *sql.DB) (string, error) {
	var id string
	err := db.QueryRowContext(ctx,
		`DELETE FROM settings WHERE key = ? RETURNING value`, copyMarkerKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id, nil
}

func setSetting(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return errors.NewStoreFailed("setting_write", key, err)
	}
	return nil
}

func getSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return value, nil
}
