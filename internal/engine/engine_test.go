package engine

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
	"github.com/clipkeep/clipkeep/internal/gate"
	"github.com/clipkeep/clipkeep/internal/history"
	"github.com/clipkeep/clipkeep/internal/record"
	"github.com/clipkeep/clipkeep/internal/retention"
)

type fakeResolver struct {
	bundleID string
}

func (f *fakeResolver) FrontmostApp() (string, string, error) {
	return f.bundleID, "Fake App", nil
}

type testRig struct {
	engine   *Engine
	source   *clipboard.Fake
	gate     *gate.Gate
	hist     *history.Store
	database *sql.DB
	cfg      *config.Config
}

func newTestRig(t *testing.T, resolver gate.AppResolver, mutate func(*config.Config)) *testRig {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	hist, err := history.New(context.Background(), database, cfg, nil)
	require.NoError(t, err)

	g := gate.New(database, resolver, cfg.ExclusionEnabled, nil)
	thumbs := retention.NewThumbManager(
		time.Duration(cfg.InactivityThresholdMinutes)*time.Minute, cfg.ThumbnailMaxPx, nil)
	source := clipboard.NewFake()

	eng := New(source, g, hist, thumbs, database, cfg, nil)

	// First poll seeds the revision counter without capturing.
	eng.PollOnce(context.Background())

	return &testRig{engine: eng, source: source, gate: g, hist: hist, database: database, cfg: cfg}
}

func (r *testRig) countRecords(t *testing.T) int {
	t.Helper()
	n, err := db.CountRecords(context.Background(), r.database)
	require.NoError(t, err)
	return n
}

func TestPollOnce_NoChangeIsNoop(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	rig.engine.PollOnce(ctx)
	rig.engine.PollOnce(ctx)
	require.Equal(t, 0, rig.countRecords(t))
}

func TestPollOnce_CapturesTextChange(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	rig.source.SetText("hello")
	rig.engine.PollOnce(ctx)

	require.Equal(t, 1, rig.countRecords(t))
	window := rig.hist.Window()
	require.Equal(t, record.ItemText, window[0].ItemType)
	require.Equal(t, "hello", *window[0].Content)
}

func TestPollOnce_SameRevisionNotReprocessed(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	rig.source.SetText("hello")
	rig.engine.PollOnce(ctx)
	rig.engine.PollOnce(ctx) // counter unchanged

	require.Equal(t, 1, rig.countRecords(t))
}

func TestPollOnce_DedupIdempotence(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	rig.source.SetText("hello")
	rig.engine.PollOnce(ctx)
	rig.source.SetText("other")
	rig.engine.PollOnce(ctx)
	rig.source.SetText("hello") // counter moves, payload repeats
	rig.engine.PollOnce(ctx)

	require.Equal(t, 2, rig.countRecords(t))
	// The deduped record moved back to the top of recency order.
	require.Equal(t, "hello", *rig.hist.Window()[0].Content)
}

func TestPollOnce_CaptureModeBoth(t *testing.T) {
	rig := newTestRig(t, nil, func(c *config.Config) { c.CaptureMode = config.CaptureBoth })
	ctx := context.Background()

	rig.source.SetTextAndImage("caption", []byte{1, 2, 3})
	rig.engine.PollOnce(ctx)

	require.Equal(t, 2, rig.countRecords(t))
	types := map[record.ItemType]bool{}
	for _, r := range rig.hist.Window() {
		types[r.ItemType] = true
	}
	require.True(t, types[record.ItemText])
	require.True(t, types[record.ItemImage])
}

func TestPollOnce_CaptureModeTextOnly(t *testing.T) {
	rig := newTestRig(t, nil, nil) // text_only is the default
	ctx := context.Background()

	rig.source.SetTextAndImage("caption", []byte{1, 2, 3})
	rig.engine.PollOnce(ctx)

	require.Equal(t, 1, rig.countRecords(t))
	require.Equal(t, record.ItemText, rig.hist.Window()[0].ItemType)
}

func TestPollOnce_PauseSuppression(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	require.NoError(t, rig.gate.Pause(ctx, time.Hour))
	rig.source.SetText("while paused")
	rig.engine.PollOnce(ctx)
	require.Equal(t, 0, rig.countRecords(t))

	// The revision was consumed during the pause: resuming does not recover
	// it, the change is skipped permanently.
	require.NoError(t, rig.gate.Resume(ctx))
	rig.engine.PollOnce(ctx)
	require.Equal(t, 0, rig.countRecords(t))

	// A change after expiry is captured normally.
	rig.source.SetText("after resume")
	rig.engine.PollOnce(ctx)
	require.Equal(t, 1, rig.countRecords(t))
	require.Equal(t, "after resume", *rig.hist.Window()[0].Content)
}

func TestPollOnce_ExclusionSuppression(t *testing.T) {
	resolver := &fakeResolver{bundleID: "com.example.vault"}
	rig := newTestRig(t, resolver, nil)
	ctx := context.Background()

	require.NoError(t, rig.gate.AddExclusion(ctx, "com.example.vault", "Vault"))

	rig.source.SetText("secret")
	rig.engine.PollOnce(ctx)
	require.Equal(t, 0, rig.countRecords(t))

	// Disabling exclusion restores capture for the same application.
	rig.gate.SetExclusionEnabled(false)
	rig.source.SetText("not secret anymore")
	rig.engine.PollOnce(ctx)
	require.Equal(t, 1, rig.countRecords(t))
}

func TestPollOnce_RetentionBound(t *testing.T) {
	rig := newTestRig(t, nil, func(c *config.Config) { c.MaxRecordsToKeep = 3 })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rig.source.SetText(fmt.Sprintf("item %d", i))
		rig.engine.PollOnce(ctx)
		time.Sleep(2 * time.Millisecond) // distinct millisecond timestamps
	}

	require.Equal(t, 3, rig.countRecords(t))

	// The survivors are the newest three.
	window := rig.hist.Window()
	require.Len(t, window, 3)
	require.Equal(t, "item 4", *window[0].Content)
	require.Equal(t, "item 3", *window[1].Content)
	require.Equal(t, "item 2", *window[2].Content)
}

func TestPollOnce_RetentionSparesFavorites(t *testing.T) {
	rig := newTestRig(t, nil, func(c *config.Config) { c.MaxRecordsToKeep = 2 })
	ctx := context.Background()

	rig.source.SetText("keep me")
	rig.engine.PollOnce(ctx)
	favID := rig.hist.Window()[0].ID
	_, err := rig.hist.ToggleFavorite(ctx, favID)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		time.Sleep(2 * time.Millisecond)
		rig.source.SetText(fmt.Sprintf("filler %d", i))
		rig.engine.PollOnce(ctx)
	}

	// Two non-favorites plus the favorite survive.
	require.Equal(t, 3, rig.countRecords(t))
	got, err := db.GetRecord(ctx, rig.database, favID)
	require.NoError(t, err)
	require.True(t, got.IsFavorite)
}

func TestPollOnce_RetentionDisabled(t *testing.T) {
	rig := newTestRig(t, nil, func(c *config.Config) {
		c.RetentionEnabled = false
		c.MaxRecordsToKeep = 2
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rig.source.SetText(fmt.Sprintf("item %d", i))
		rig.engine.PollOnce(ctx)
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 5, rig.countRecords(t))
}

func TestPollOnce_PauseFromAnotherProcess(t *testing.T) {
	// The pause command runs in its own process; its gate shares only the
	// database with the watcher's gate.
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()
	cliGate := gate.New(rig.database, nil, false, nil)

	require.NoError(t, cliGate.Pause(ctx, time.Hour))
	rig.source.SetText("while paused elsewhere")
	rig.engine.PollOnce(ctx)
	require.Equal(t, 0, rig.countRecords(t))

	require.NoError(t, cliGate.Resume(ctx))
	rig.source.SetText("after resume elsewhere")
	rig.engine.PollOnce(ctx)
	require.Equal(t, 1, rig.countRecords(t))
}

func TestPollOnce_CopyBackNotRecaptured(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	rig.source.SetText("hello")
	rig.engine.PollOnce(ctx)
	id := rig.hist.Window()[0].ID

	_, err := rig.hist.CopyRecord(ctx, rig.source, id)
	require.NoError(t, err)
	rig.engine.PollOnce(ctx)

	require.Equal(t, 1, rig.countRecords(t))
	require.Len(t, rig.source.Written, 1)
}

func TestPollOnce_CopyBackFromAnotherProcessOutsideWindow(t *testing.T) {
	// Copy-back of a record the watcher's dedup window no longer holds: the
	// stored marker, not window dedup, must prevent a duplicate insert.
	rig := newTestRig(t, nil, func(c *config.Config) { c.PageSize = 1 })
	ctx := context.Background()

	rig.source.SetText("older")
	rig.engine.PollOnce(ctx)
	olderID := rig.hist.Window()[0].ID
	time.Sleep(2 * time.Millisecond)

	rig.source.SetText("newer")
	rig.engine.PollOnce(ctx)
	require.Equal(t, "newer", *rig.hist.Window()[0].Content)

	// The copy command's own history store over the same database.
	cliHist, err := history.New(ctx, rig.database, rig.cfg, nil)
	require.NoError(t, err)
	_, err = cliHist.CopyRecord(ctx, rig.source, olderID)
	require.NoError(t, err)

	rig.engine.PollOnce(ctx)
	require.Equal(t, 2, rig.countRecords(t))
}

func TestPollOnce_StaleCopyMarkerDoesNotSuppressNewChange(t *testing.T) {
	rig := newTestRig(t, nil, nil)
	ctx := context.Background()

	rig.source.SetText("hello")
	rig.engine.PollOnce(ctx)
	id := rig.hist.Window()[0].ID

	// Marker set, but the clipboard has moved on to an unrelated payload
	// before the watcher polls again.
	_, err := rig.hist.CopyRecord(ctx, rig.source, id)
	require.NoError(t, err)
	rig.source.SetText("typed in the meantime")
	rig.engine.PollOnce(ctx)

	require.Equal(t, 2, rig.countRecords(t))
	require.Equal(t, "typed in the meantime", *rig.hist.Window()[0].Content)
}

func TestRun_CancellationStopsLoop(t *testing.T) {
	rig := newTestRig(t, nil, func(c *config.Config) { c.PollIntervalMS = 5 })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rig.engine.Run(ctx) }()

	rig.source.SetText("captured by the loop")
	require.Eventually(t, func() bool { return rig.countRecords(t) == 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}
