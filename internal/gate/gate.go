// Package gate suppresses clipboard capture: a timed pause window plus a
// permanent per-application exclusion set.
package gate

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/clipkeep/clipkeep/internal/db"
)

// AppResolver reports the current foreground application.
type AppResolver interface {
	FrontmostApp() (bundleID, displayName string, err error)
}

// Gate decides whether a clipboard revision may be captured. It has no
// effect beyond gating the classifier; the poller advances its revision
// counter either way, so suppressed changes are skipped, never queued.
//
// The pause expiry instant is persisted in the store so a pause issued from
// one process (the CLI or an MCP server) suppresses capture in the watcher
// process. The in-memory copy is a fallback for when the store read fails.
type Gate struct {
	mu         sync.Mutex
	pauseUntil time.Time
	pauseTimer *time.Timer

	database         *sql.DB
	exclusionEnabled bool
	resolver         AppResolver
	logger           *slog.Logger

	now func() time.Time
}

// New creates a gate. resolver may be nil, in which case exclusion checks
// are skipped (the foreground application cannot be determined).
func New(database *sql.DB, resolver AppResolver, exclusionEnabled bool, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		database:         database,
		exclusionEnabled: exclusionEnabled,
		resolver:         resolver,
		logger:           logger,
		now:              time.Now,
	}
}

// Pause suppresses capture for the given duration. Pausing while already
// paused replaces the prior expiry; there is no stacking.
func (g *Gate) Pause(ctx context.Context, d time.Duration) error {
	until := g.now().Add(d)
	if err := db.SetPauseUntil(ctx, g.database, until.UnixMilli()); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pauseTimer != nil {
		g.pauseTimer.Stop()
	}
	g.pauseUntil = until

	// The expiry instant is authoritative; the timer only clears the local
	// mirror eagerly so RemainingPause reads zero right after expiry.
	g.pauseTimer = time.AfterFunc(d, g.clearLocalPause)
	return nil
}

// Resume clears the pause state immediately.
func (g *Gate) Resume(ctx context.Context) error {
	if err := db.SetPauseUntil(ctx, g.database, 0); err != nil {
		return err
	}
	g.clearLocalPause()
	return nil
}

func (g *Gate) clearLocalPause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pauseTimer != nil {
		g.pauseTimer.Stop()
		g.pauseTimer = nil
	}
	g.pauseUntil = time.Time{}
}

// pauseDeadline returns the authoritative pause expiry: the stored instant
// when readable, the process-local mirror otherwise.
func (g *Gate) pauseDeadline(ctx context.Context) time.Time {
	millis, err := db.PauseUntil(ctx, g.database)
	if err != nil {
		g.logger.Warn("pause lookup failed", "error", err)
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.pauseUntil
	}
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// IsPaused reports whether capture is currently suppressed by a pause.
func (g *Gate) IsPaused(ctx context.Context) bool {
	return g.now().Before(g.pauseDeadline(ctx))
}

// RemainingPause returns the time left in the pause window, or zero.
func (g *Gate) RemainingPause(ctx context.Context) time.Duration {
	remaining := g.pauseDeadline(ctx).Sub(g.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Allows reports whether the current clipboard revision may be captured.
// A pause or a foreground-app exclusion match suppresses the capture for
// this revision only.
func (g *Gate) Allows(ctx context.Context) bool {
	if g.IsPaused(ctx) {
		return false
	}

	g.mu.Lock()
	enabled := g.exclusionEnabled
	g.mu.Unlock()
	if !enabled || g.resolver == nil {
		return true
	}

	bundleID, _, err := g.resolver.FrontmostApp()
	if err != nil {
		// Cannot identify the app; capturing is the less surprising default.
		g.logger.Warn("foreground app lookup failed", "error", err)
		return true
	}

	excluded, err := db.IsExcluded(ctx, g.database, bundleID)
	if err != nil {
		g.logger.Error("exclusion lookup failed", "bundle_id", bundleID, "error", err)
		return true
	}
	if excluded {
		g.logger.Debug("capture skipped for excluded app", "bundle_id", bundleID)
		return false
	}
	return true
}

// SetExclusionEnabled toggles exclusion checking at runtime.
func (g *Gate) SetExclusionEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exclusionEnabled = enabled
}

// AddExclusion adds the given application to the exclusion set.
func (g *Gate) AddExclusion(ctx context.Context, bundleID, displayName string) error {
	return db.AddExclusion(ctx, g.database, db.Exclusion{
		BundleID:    bundleID,
		DisplayName: displayName,
		AddedAt:     g.now().UnixMilli(),
	})
}

// RemoveExclusion removes the given application from the exclusion set.
func (g *Gate) RemoveExclusion(ctx context.Context, bundleID string) error {
	return db.RemoveExclusion(ctx, g.database, bundleID)
}

// Exclusions returns the current exclusion set.
func (g *Gate) Exclusions(ctx context.Context) ([]db.Exclusion, error) {
	return db.ListExclusions(ctx, g.database)
}
