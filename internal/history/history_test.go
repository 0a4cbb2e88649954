package history

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/record"
)

// fakeClock lets tests control capture timestamps deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func strPtr(s string) *string { return &s }

func textCandidate(content string) *record.Record {
	return &record.Record{ItemType: record.ItemText, Content: &content}
}

func newTestStore(t *testing.T) (*Store, *sql.DB, *fakeClock) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	s, err := New(context.Background(), database, cfg, nil)
	require.NoError(t, err)

	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s.now = clock.now
	return s, database, clock
}

func TestNew_EmptyStoreIsValid(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.Empty(t, s.Window())
}

func TestCapture_Insert(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, inserted, err := s.Capture(ctx, textCandidate("hello"))
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "hello", *rec.ContentPreview)

	window := s.Window()
	require.Len(t, window, 1)
	require.Equal(t, rec.ID, window[0].ID)
}

func TestCapture_DedupIdempotence(t *testing.T) {
	s, database, clock := newTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.Capture(ctx, textCandidate("hello"))
	require.NoError(t, err)
	require.True(t, inserted)

	clock.advance(5 * time.Second)
	secondTime := clock.now().UnixMilli()

	second, inserted, err := s.Capture(ctx, textCandidate("hello"))
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, secondTime, second.Timestamp)

	// Exactly one record in the store.
	total, err := db.CountRecords(ctx, database)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestCapture_DedupMovesToTop(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	a, _, err := s.Capture(ctx, textCandidate("first"))
	require.NoError(t, err)
	clock.advance(time.Second)
	_, _, err = s.Capture(ctx, textCandidate("second"))
	require.NoError(t, err)
	clock.advance(time.Second)

	_, inserted, err := s.Capture(ctx, textCandidate("first"))
	require.NoError(t, err)
	require.False(t, inserted)

	window := s.Window()
	require.Len(t, window, 2)
	require.Equal(t, a.ID, window[0].ID)
}

func TestCapture_DifferentTypesNeverDedup(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	_, inserted, err := s.Capture(ctx, textCandidate("payload"))
	require.NoError(t, err)
	require.True(t, inserted)
	clock.advance(time.Second)

	_, inserted, err = s.Capture(ctx, &record.Record{
		ItemType: record.ItemImage, ImageBytes: []byte("payload"),
	})
	require.NoError(t, err)
	require.True(t, inserted)
	require.Len(t, s.Window(), 2)
}

func TestCapture_DedupBoundedToWindow(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.cfg.PageSize = 2
	ctx := context.Background()

	_, _, err := s.Capture(ctx, textCandidate("oldest"))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		clock.advance(time.Second)
		_, _, err = s.Capture(ctx, textCandidate(fmt.Sprintf("filler %d", i)))
		require.NoError(t, err)
	}
	// "oldest" has fallen out of the 2-record window, so its duplicate is
	// not detected and a new record is inserted.
	clock.advance(time.Second)
	_, inserted, err := s.Capture(ctx, textCandidate("oldest"))
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestLoadMore(t *testing.T) {
	s, _, clock := newTestStore(t)
	s.cfg.PageSize = 2
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _, err := s.Capture(ctx, textCandidate(fmt.Sprintf("item %d", i)))
		require.NoError(t, err)
		clock.advance(time.Second)
	}
	require.Len(t, s.Window(), 2)

	require.NoError(t, s.LoadMore(ctx))
	require.Len(t, s.Window(), 4)

	require.NoError(t, s.LoadMore(ctx))
	require.Len(t, s.Window(), 5)
}

func TestSearch_ReplacesWindowAndClearRestores(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"alpha one", "beta two", "alpha three"} {
		_, _, err := s.Capture(ctx, textCandidate(content))
		require.NoError(t, err)
		clock.advance(time.Second)
	}

	results, err := s.Search(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, s.Window(), 2)

	require.NoError(t, s.ClearSearch(ctx))
	require.Len(t, s.Window(), 3)
}

func TestDelete(t *testing.T) {
	s, database, _ := newTestStore(t)
	ctx := context.Background()

	rec, _, err := s.Capture(ctx, textCandidate("hello"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, rec.ID))
	require.Empty(t, s.Window())

	_, err = db.GetRecord(ctx, database, rec.ID)
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestToggleFavorite_OrderAssignment(t *testing.T) {
	s, database, clock := newTestStore(t)
	ctx := context.Background()

	a, _, err := s.Capture(ctx, textCandidate("a"))
	require.NoError(t, err)
	clock.advance(time.Second)
	b, _, err := s.Capture(ctx, textCandidate("b"))
	require.NoError(t, err)

	fav, err := s.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, fav)
	fav, err = s.ToggleFavorite(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, fav)

	gotA, err := db.GetRecord(ctx, database, a.ID)
	require.NoError(t, err)
	gotB, err := db.GetRecord(ctx, database, b.ID)
	require.NoError(t, err)
	require.Equal(t, 1, gotA.FavoriteOrder)
	require.Equal(t, 2, gotB.FavoriteOrder)

	// Unfavoriting resets to the sentinel.
	fav, err = s.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, fav)
	gotA, err = db.GetRecord(ctx, database, a.ID)
	require.NoError(t, err)
	require.Equal(t, record.FavoriteOrderNone, gotA.FavoriteOrder)

	// Re-favoriting goes to the end, not back to its old slot.
	_, err = s.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	gotA, err = db.GetRecord(ctx, database, a.ID)
	require.NoError(t, err)
	require.Equal(t, 3, gotA.FavoriteOrder)
}

func TestReorderFavorites(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"a", "b", "c"} {
		rec, _, err := s.Capture(ctx, textCandidate(content))
		require.NoError(t, err)
		_, err = s.ToggleFavorite(ctx, rec.ID)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
		clock.advance(time.Second)
	}

	require.NoError(t, s.ReorderFavorites(ctx, []string{ids[2], ids[0], ids[1]}))

	favs, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.Equal(t, ids[2], favs[0].ID)
	require.Equal(t, ids[0], favs[1].ID)
	require.Equal(t, ids[1], favs[2].ID)
}

func TestEditContent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, _, err := s.Capture(ctx, textCandidate("tpyo"))
	require.NoError(t, err)

	require.NoError(t, s.EditContent(ctx, rec.ID, "typo"))

	window := s.Window()
	require.Equal(t, "typo", *window[0].Content)
	require.Equal(t, "typo", *window[0].ContentPreview)
}

func TestEditContent_RejectsNonText(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	rec, _, err := s.Capture(ctx, &record.Record{
		ItemType: record.ItemImage, ImageBytes: []byte{1, 2},
	})
	require.NoError(t, err)

	err = s.EditContent(ctx, rec.ID, "new text")
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestCopyRecord(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	fake := clipboard.NewFake()

	var accessed []string
	s.OnAccess = func(id string) { accessed = append(accessed, id) }

	rec, _, err := s.Capture(ctx, textCandidate("copy me"))
	require.NoError(t, err)

	clock.advance(time.Minute)
	copied, err := s.CopyRecord(ctx, fake, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, copied.ID)
	require.Equal(t, clock.now().UnixMilli(), copied.Timestamp)

	require.Len(t, fake.Written, 1)
	require.Equal(t, "copy me", *fake.Written[0].Content)
	require.Equal(t, []string{rec.ID}, accessed)
}

func TestCopyRecord_NotFound(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.CopyRecord(context.Background(), clipboard.NewFake(), "ghost")
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCounts(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := s.Capture(ctx, textCandidate(fmt.Sprintf("item %d", i)))
		require.NoError(t, err)
		clock.advance(time.Second)
	}
	rec := s.Window()[0]
	_, err := s.ToggleFavorite(ctx, rec.ID)
	require.NoError(t, err)

	total, favs, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, 1, favs)
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	events := s.Subscribe()

	rec, _, err := s.Capture(ctx, textCandidate("hello"))
	require.NoError(t, err)

	ev := <-events
	require.Equal(t, EventInserted, ev.Kind)
	require.Equal(t, rec.ID, ev.ID)

	require.NoError(t, s.Delete(ctx, rec.ID))
	ev = <-events
	require.Equal(t, EventDeleted, ev.Kind)
}
