package db

import (
	"context"
	"database/sql"

	"github.com/clipkeep/clipkeep/internal/errors"
)

// Exclusion is an application whose clipboard activity is never captured.
// Set semantics keyed by bundle ID.
type Exclusion struct {
	BundleID    string `json:"bundle_id"`
	DisplayName string `json:"display_name"`
	AddedAt     int64  `json:"added_at"`
}

// AddExclusion inserts or refreshes an exclusion entry.
func AddExclusion(ctx context.Context, db *sql.DB, e Exclusion) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO exclusions (bundle_id, display_name, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(bundle_id) DO UPDATE SET display_name = excluded.display_name`,
		e.BundleID, e.DisplayName, e.AddedAt)
	if err != nil {
		return errors.NewStoreFailed("exclusion_add", e.BundleID, err)
	}
	return nil
}

// RemoveExclusion deletes an exclusion entry by bundle ID.
func RemoveExclusion(ctx context.Context, db *sql.DB, bundleID string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM exclusions WHERE bundle_id = ?`, bundleID)
	if err != nil {
		return errors.NewStoreFailed("exclusion_remove", bundleID, err)
	}
	return requireAffected(result, bundleID)
}

// IsExcluded reports whether a bundle ID is in the exclusion set.
func IsExcluded(ctx context.Context, db *sql.DB, bundleID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM exclusions WHERE bundle_id = ? LIMIT 1`, bundleID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListExclusions returns all exclusion entries, most recently added first.
func ListExclusions(ctx context.Context, db *sql.DB) ([]Exclusion, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT bundle_id, display_name, added_at FROM exclusions ORDER BY added_at DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Exclusion
	for rows.Next() {
		var e Exclusion
		if err := rows.Scan(&e.BundleID, &e.DisplayName, &e.AddedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}
