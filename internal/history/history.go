// Package history owns the in-memory working window of capture records and
// mediates every mutation against the persistent store. The store is the
// single source of truth: after any successful write the window is refetched
// from offset 0, never patched in place, so the visible window can never
// diverge from committed state.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/record"
)

// EventKind identifies what changed.
type EventKind string

const (
	EventInserted  EventKind = "inserted"
	EventUpdated   EventKind = "updated"
	EventDeleted   EventKind = "deleted"
	EventRefreshed EventKind = "refreshed"
)

// Event is broadcast to read-only subscribers after the window has been
// re-synchronized with the store.
type Event struct {
	Kind EventKind
	ID   string
}

// Store is the persistence orchestrator and dedup engine.
type Store struct {
	database *sql.DB
	cfg      *config.Config
	logger   *slog.Logger

	mu        sync.Mutex
	window    []record.Record
	pages     int
	searchGen uint64
	subs      []chan Event

	// OnAccess is invoked with a record ID on every explicit access (copy).
	// The memory manager hooks its last-access bookkeeping in here.
	OnAccess func(id string)

	now   func() time.Time
	newID func() string
}

// New creates the orchestrator and loads the first window page. An empty or
// freshly reconstructed store is a valid state, not an error.
func New(ctx context.Context, database *sql.DB, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		database: database,
		cfg:      cfg,
		logger:   logger,
		pages:    1,
		now:      time.Now,
		newID:    newULID,
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Window returns a copy of the current working window, most recent first.
func (s *Store) Window() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.Record, len(s.window))
	copy(out, s.window)
	return out
}

// Subscribe returns a read-only event channel. Slow subscribers drop events
// rather than blocking mutations.
func (s *Store) Subscribe() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, 16)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Capture runs the dedup-or-insert decision for a classified candidate.
// The scan is bounded to the loaded working window, most recent first: an
// equal record gets its timestamp bumped, otherwise a new record is created
// with derived metadata. Returns the stored record and whether it was newly
// inserted.
func (s *Store) Capture(ctx context.Context, cand *record.Record) (*record.Record, bool, error) {
	if dup := s.findDuplicate(cand); dup != "" {
		ts := s.now().UnixMilli()
		if err := db.TouchRecord(ctx, s.database, dup, ts); err != nil {
			s.logFailure("touch", dup, err)
			return nil, false, err
		}
		s.refreshAfterWrite(ctx)
		s.publish(Event{Kind: EventUpdated, ID: dup})
		rec, err := db.GetRecord(ctx, s.database, dup)
		if err != nil {
			return nil, false, err
		}
		return rec, false, nil
	}

	rec := *cand
	rec.ID = s.newID()
	rec.Timestamp = s.now().UnixMilli()
	record.DeriveMeta(&rec, s.cfg.PreviewChars)
	if err := record.Validate(&rec); err != nil {
		return nil, false, errors.NewInternal(err)
	}

	if err := db.InsertRecord(ctx, s.database, &rec); err != nil {
		s.logFailure("insert", rec.ID, err)
		return nil, false, err
	}
	s.refreshAfterWrite(ctx)
	s.publish(Event{Kind: EventInserted, ID: rec.ID})
	return &rec, true, nil
}

// findDuplicate scans the working window most-recent-first for a record
// payload-equal to the candidate. Old, unloaded duplicates are deliberately
// not detected.
func (s *Store) findDuplicate(cand *record.Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.window {
		if record.Equal(&s.window[i], cand) {
			return s.window[i].ID
		}
	}
	return ""
}

// LoadMore extends the window by one page.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	s.pages++
	s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.publish(Event{Kind: EventRefreshed})
	return nil
}

// Search replaces the window contents with substring matches over content,
// preview, and file name. A newer search supersedes an in-flight one: stale
// results are dropped wholesale.
func (s *Store) Search(ctx context.Context, query string) ([]record.Record, error) {
	s.mu.Lock()
	s.searchGen++
	gen := s.searchGen
	s.mu.Unlock()

	results, err := db.SearchRecords(ctx, s.database, query, s.cfg.SearchLimit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen != s.searchGen {
		s.mu.Unlock()
		return nil, nil // superseded
	}
	s.window = results
	s.mu.Unlock()

	s.publish(Event{Kind: EventRefreshed})
	return results, nil
}

// ClearSearch drops search results and restores the paginated window.
func (s *Store) ClearSearch(ctx context.Context) error {
	s.mu.Lock()
	s.searchGen++
	s.pages = 1
	s.mu.Unlock()
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.publish(Event{Kind: EventRefreshed})
	return nil
}

// Delete removes a record permanently.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := db.DeleteRecord(ctx, s.database, id); err != nil {
		s.logFailure("delete", id, err)
		return err
	}
	s.refreshAfterWrite(ctx)
	s.publish(Event{Kind: EventDeleted, ID: id})
	return nil
}

// ToggleFavorite flips favorite state. Favoriting assigns
// max(existing favorite_order)+1; unfavoriting resets to the sentinel.
// Returns the new favorite state.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	rec, err := db.GetRecord(ctx, s.database, id)
	if err != nil {
		return false, err
	}

	if rec.IsFavorite {
		err = db.SetFavorite(ctx, s.database, id, false, record.FavoriteOrderNone)
	} else {
		var max int
		max, err = db.MaxFavoriteOrder(ctx, s.database)
		if err != nil {
			return false, err
		}
		err = db.SetFavorite(ctx, s.database, id, true, max+1)
	}
	if err != nil {
		s.logFailure("favorite", id, err)
		return false, err
	}

	s.refreshAfterWrite(ctx)
	s.publish(Event{Kind: EventUpdated, ID: id})
	return !rec.IsFavorite, nil
}

// ReorderFavorites reassigns the dense favorite ordering in a single batch.
func (s *Store) ReorderFavorites(ctx context.Context, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return errors.NewInvalidRequest("ordered ids must not be empty")
	}
	if err := db.ReorderFavorites(ctx, s.database, orderedIDs); err != nil {
		s.logFailure("reorder", "", err)
		return err
	}
	s.refreshAfterWrite(ctx)
	s.publish(Event{Kind: EventRefreshed})
	return nil
}

// Favorites returns favorited records in favorite order.
func (s *Store) Favorites(ctx context.Context) ([]record.Record, error) {
	return db.ListFavorites(ctx, s.database)
}

// Recent returns the n most recent records straight from the store,
// independent of the window (used by the paste/hotkey collaborator).
func (s *Store) Recent(ctx context.Context, n int) ([]record.Record, error) {
	return db.ListRecords(ctx, s.database, n, 0)
}

// EditContent replaces the text payload of a text or combined record and
// re-derives its preview.
func (s *Store) EditContent(ctx context.Context, id, content string) error {
	rec, err := db.GetRecord(ctx, s.database, id)
	if err != nil {
		return err
	}
	if rec.ItemType != record.ItemText && rec.ItemType != record.ItemCombined {
		return errors.NewInvalidRequest("only text content can be edited")
	}

	preview := record.Preview(content, s.cfg.PreviewChars)
	if err := db.UpdateContent(ctx, s.database, id, content, preview); err != nil {
		s.logFailure("edit", id, err)
		return err
	}
	s.refreshAfterWrite(ctx)
	s.publish(Event{Kind: EventUpdated, ID: id})
	return nil
}

// CopyRecord serializes a record's payload back to the clipboard source and
// bumps its timestamp to the top of recency order. The access hook fires so
// thumbnail bookkeeping sees the touch.
func (s *Store) CopyRecord(ctx context.Context, src clipboard.Source, id string) (*record.Record, error) {
	rec, err := db.GetRecord(ctx, s.database, id)
	if err != nil {
		return nil, err
	}

	if err := src.Write(rec); err != nil {
		return nil, errors.NewInternal(err)
	}

	ts := s.now().UnixMilli()
	if err := db.TouchRecord(ctx, s.database, id, ts); err != nil {
		s.logFailure("touch", id, err)
		return nil, err
	}
	rec.Timestamp = ts

	// Leave a marker so the watcher process recognizes the clipboard change
	// this write causes as a copy-back, not a fresh external change. A failed
	// marker write degrades to a window-bounded dedup touch.
	if err := db.SetCopyMarker(ctx, s.database, id); err != nil {
		s.logger.Warn("copy marker write failed", "record_id", id, "error", err)
	}

	if s.OnAccess != nil {
		s.OnAccess(id)
	}

	s.refreshAfterWrite(ctx)
	s.publish(Event{Kind: EventUpdated, ID: id})
	return rec, nil
}

// Counts returns (total, favorited) record counts.
func (s *Store) Counts(ctx context.Context) (int, int, error) {
	total, err := db.CountRecords(ctx, s.database)
	if err != nil {
		return 0, 0, err
	}
	nonFav, err := db.CountNonFavorites(ctx, s.database)
	if err != nil {
		return 0, 0, err
	}
	return total, total - nonFav, nil
}

// Sync refetches the window after an out-of-band store change, such as a
// retention pruning pass.
func (s *Store) Sync(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.publish(Event{Kind: EventRefreshed})
	return nil
}

// refresh refetches the window from offset 0 covering all loaded pages.
func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	limit := s.pages * s.cfg.PageSize
	s.mu.Unlock()

	records, err := db.ListRecords(ctx, s.database, limit, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.window = records
	s.mu.Unlock()
	return nil
}

// refreshAfterWrite re-synchronizes the window after a committed mutation.
// A failed refetch leaves the previous window in place; the next successful
// operation heals it.
func (s *Store) refreshAfterWrite(ctx context.Context) {
	if err := s.refresh(ctx); err != nil {
		s.logger.Error("window refresh failed", "error", err)
	}
}

func (s *Store) logFailure(op, id string, err error) {
	s.logger.Error("persistence write failed", "op", op, "record_id", id, "error", err)
}
