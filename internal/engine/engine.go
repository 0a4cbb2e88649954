// Package engine drives the capture pipeline: poll the clipboard revision
// counter, gate, classify, dedup-or-insert, then enforce retention. One
// goroutine owns the whole timeline, so capture handling, persistence
// writes, and cleanup never run concurrently with each other.
package engine

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/clipkeep/clipkeep/internal/capture"
	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/gate"
	"github.com/clipkeep/clipkeep/internal/history"
	"github.com/clipkeep/clipkeep/internal/record"
	"github.com/clipkeep/clipkeep/internal/retention"
)

// Engine owns the polling loop and the revision counter.
type Engine struct {
	src        clipboard.Source
	classifier *capture.Classifier
	gate       *gate.Gate
	hist       *history.Store
	thumbs     *retention.ThumbManager
	database   *sql.DB
	cfg        *config.Config
	logger     *slog.Logger

	lastSeen uint64
	seeded   bool
}

// New wires the pipeline together. The history store's access hook is routed
// into the thumbnail manager so explicit accesses refresh its bookkeeping.
func New(src clipboard.Source, g *gate.Gate, hist *history.Store, thumbs *retention.ThumbManager, database *sql.DB, cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	hist.OnAccess = thumbs.Touch
	return &Engine{
		src:        src,
		classifier: capture.New(cfg, logger),
		gate:       g,
		hist:       hist,
		thumbs:     thumbs,
		database:   database,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, driving the poll ticker, the memory
// cleanup ticker, and deletion bookkeeping from the history event stream.
func (e *Engine) Run(ctx context.Context) error {
	poll := time.NewTicker(time.Duration(e.cfg.PollIntervalMS) * time.Millisecond)
	defer poll.Stop()

	var cleanupC <-chan time.Time
	if e.cfg.MemoryCleanupEnabled {
		cleanup := time.NewTicker(time.Duration(e.cfg.MemoryCleanupIntervalMinutes) * time.Minute)
		defer cleanup.Stop()
		cleanupC = cleanup.C
	}

	events := e.hist.Subscribe()

	// Seed the revision counter so whatever is already on the clipboard at
	// startup is not treated as a fresh change.
	if count, err := e.src.ChangeCount(); err == nil {
		e.lastSeen = count
		e.seeded = true
	}

	e.logger.Info("capture engine started",
		"poll_interval_ms", e.cfg.PollIntervalMS,
		"capture_mode", string(e.cfg.CaptureMode),
		"retention_enabled", e.cfg.RetentionEnabled)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("capture engine stopped")
			return ctx.Err()
		case <-poll.C:
			e.PollOnce(ctx)
		case <-cleanupC:
			e.thumbs.Cleanup()
		case ev := <-events:
			if ev.Kind == history.EventDeleted {
				e.thumbs.Forget(ev.ID)
			}
		}
	}
}

// PollOnce samples the clipboard revision counter and, if it moved, runs one
// capture cycle. The last-seen counter is advanced before any processing so
// a slow or failing pipeline can never reprocess the same revision; changes
// made while the gate suppresses capture are skipped permanently.
func (e *Engine) PollOnce(ctx context.Context) {
	count, err := e.src.ChangeCount()
	if err != nil {
		e.logger.Warn("clipboard poll failed", "error", err)
		return
	}
	if !e.seeded {
		e.lastSeen = count
		e.seeded = true
		return
	}
	if count == e.lastSeen {
		return
	}
	e.lastSeen = count

	if !e.gate.Allows(ctx) {
		return
	}

	snap, err := e.src.Read()
	if err != nil {
		e.logger.Warn("clipboard read failed", "error", err)
		return
	}

	candidates := e.classifier.Classify(snap)
	if len(candidates) > 0 {
		candidates = e.dropCopyBack(ctx, candidates)
	}

	inserted := false
	for _, cand := range candidates {
		_, ins, err := e.hist.Capture(ctx, cand)
		if err != nil {
			// Already logged with op context by the history store; the poll
			// loop continues on the next tick.
			continue
		}
		if ins {
			inserted = true
		}
	}

	if inserted && e.cfg.RetentionEnabled {
		pruned, err := retention.Prune(ctx, e.database, e.cfg.MaxRecordsToKeep, e.logger)
		if err != nil {
			e.logger.Error("retention prune failed", "error", err)
			return
		}
		if pruned > 0 {
			if err := e.hist.Sync(ctx); err != nil {
				e.logger.Error("window sync after prune failed", "error", err)
			}
		}
	}
}

// dropCopyBack consumes a pending copy-back marker and filters out candidates
// whose payload equals the marked record. Copy-backs already bumped their
// record's timestamp, so re-capturing them would at best re-touch and at
// worst insert a duplicate once the record has aged out of the dedup window.
// The marker is consumed whether or not it matches: a stale marker must not
// suppress a later genuine change.
func (e *Engine) dropCopyBack(ctx context.Context, candidates []*record.Record) []*record.Record {
	markerID, err := db.TakeCopyMarker(ctx, e.database)
	if err != nil {
		e.logger.Warn("copy marker lookup failed", "error", err)
		return candidates
	}
	if markerID == "" {
		return candidates
	}

	copied, err := db.GetRecord(ctx, e.database, markerID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			e.logger.Warn("copy marker record lookup failed", "record_id", markerID, "error", err)
		}
		return candidates
	}

	kept := candidates[:0]
	for _, cand := range candidates {
		if record.Equal(cand, copied) {
			e.logger.Debug("skipped copy-back revision", "record_id", markerID)
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}

// History exposes the underlying store for read-only consumers.
func (e *Engine) History() *history.Store { return e.hist }
