package export

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/record"
)

func setupTest(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()
	base := t.TempDir()
	database, err := db.Init(base)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg, err := config.Load(base)
	require.NoError(t, err)
	return database, cfg
}

func insertText(t *testing.T, database *sql.DB, id, content string, ts int64, favorite bool) {
	t.Helper()
	preview := content
	rec := &record.Record{
		ID:             id,
		Timestamp:      ts,
		ItemType:       record.ItemText,
		Content:        &content,
		ContentPreview: &preview,
		IsFavorite:     favorite,
	}
	if favorite {
		rec.FavoriteOrder = 1
	}
	require.NoError(t, db.InsertRecord(context.Background(), database, rec))
}

func TestExport_JSONL(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "older", 1000, false)
	insertText(t, database, "01BBBBBBBBBBBBBBBBBBBBBBBB", "newer", 2000, true)

	out, err := Export(ctx, database, cfg, Input{})
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
	require.Equal(t, "jsonl", out.Format)
	require.True(t, strings.HasPrefix(out.Path, cfg.ExportsDir()))

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)

	require.True(t, scanner.Scan())
	var header Header
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &header))
	require.True(t, header.ClipkeepExport)
	require.Equal(t, "1.0", header.SchemaVersion)

	var lines []Line
	for scanner.Scan() {
		var line Line
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	// Newest first.
	require.Equal(t, "newer", *lines[0].Content)
	require.True(t, lines[0].IsFavorite)
	require.Equal(t, "older", *lines[1].Content)
}

func TestExport_FavoritesOnly(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "plain", 1000, false)
	insertText(t, database, "01BBBBBBBBBBBBBBBBBBBBBBBB", "starred", 2000, true)

	out, err := Export(ctx, database, cfg, Input{FavoritesOnly: true})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), "starred")
	require.NotContains(t, string(data), "plain")
}

func TestExport_Markdown(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "hello markdown", 1000, false)

	out, err := Export(ctx, database, cfg, Input{Format: FormatMarkdown})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out.Path, ".md"))

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "# Clipboard History")
	require.Contains(t, text, "hello markdown")
}

func TestExport_MarkdownEscapesFences(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "before\n```\nafter", 1000, false)

	out, err := Export(ctx, database, cfg, Input{Format: FormatMarkdown})
	require.NoError(t, err)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	// The record's own fence must not terminate the surrounding block.
	require.NotContains(t, string(data), "\n```\nafter")
}

func TestExport_HTML(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "hello html", 1000, false)

	out, err := Export(ctx, database, cfg, Input{Format: FormatHTML})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out.Path, ".html"))

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "<!DOCTYPE html>")
	require.Contains(t, text, "hello html")
	require.Contains(t, text, "<h1")
}

func TestExport_CustomPath(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "content", 1000, false)

	path := filepath.Join(t.TempDir(), "nested", "dir", "out.jsonl")
	out, err := Export(ctx, database, cfg, Input{Path: path})
	require.NoError(t, err)
	require.Equal(t, path, out.Path)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestExport_InvalidFormat(t *testing.T) {
	database, cfg := setupTest(t)

	_, err := Export(context.Background(), database, cfg, Input{Format: Format("xml")})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestExport_EmptyHistory(t *testing.T) {
	database, cfg := setupTest(t)

	out, err := Export(context.Background(), database, cfg, Input{})
	require.NoError(t, err)
	require.Equal(t, 0, out.Count)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	// Header line only.
	require.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestExport_PreservesExistingOnOverwrite(t *testing.T) {
	database, cfg := setupTest(t)
	ctx := context.Background()

	insertText(t, database, "01AAAAAAAAAAAAAAAAAAAAAAAA", "first pass", 1000, false)

	path := filepath.Join(t.TempDir(), "out.jsonl")
	_, err := Export(ctx, database, cfg, Input{Path: path})
	require.NoError(t, err)

	insertText(t, database, "01BBBBBBBBBBBBBBBBBBBBBBBB", "second pass", 2000, false)
	out, err := Export(ctx, database, cfg, Input{Path: path})
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "second pass")

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestExport_TimestampFormatting(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC).UnixMilli()
	require.Equal(t, "2026-03-14 09:26:53", formatTime(ts))
}
