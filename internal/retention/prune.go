// Package retention bounds the working set: count-based pruning of old
// records and time-based eviction of cached thumbnails.
package retention

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/clipkeep/clipkeep/internal/db"
)

// Prune enforces the retention ceiling: when the non-favorited record count
// exceeds maxToKeep, the excess is deleted oldest-first. Favorited records
// are never counted against the ceiling and never deleted. Returns the
// number of records deleted.
func Prune(ctx context.Context, database *sql.DB, maxToKeep int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	count, err := db.CountNonFavorites(ctx, database)
	if err != nil {
		return 0, err
	}
	if count <= maxToKeep {
		return 0, nil
	}

	excess := count - maxToKeep
	ids, err := db.OldestNonFavoriteIDs(ctx, database, excess)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := db.DeleteRecord(ctx, database, id); err != nil {
			// A record removed out from under us is not worth aborting over.
			logger.Warn("retention delete failed", "record_id", id, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		logger.Info("retention pruned records", "deleted", deleted, "ceiling", maxToKeep)
	}
	return deleted, nil
}
