// Package export writes clipboard history to files: JSONL for machine
// consumption, markdown for humans, and goldmark-rendered HTML.
package export

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/db"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/record"
)

// Format selects the export file format.
type Format string

const (
	FormatJSONL    Format = "jsonl"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	switch f {
	case FormatJSONL, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

func (f Format) extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatHTML:
		return "html"
	default:
		return "jsonl"
	}
}

// Input contains parameters for the Export operation.
type Input struct {
	Path          string // optional, default: <baseDir>/exports/history-<timestamp>.<ext>
	Format        Format // optional, default: jsonl
	FavoritesOnly bool
}

// Output contains the result of the Export operation.
type Output struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Header is the first line of a JSONL export file.
type Header struct {
	ClipkeepExport bool   `json:"_clipkeep_export"`
	SchemaVersion  string `json:"schema_version"`
	ExportedAt     int64  `json:"exported_at"`
}

// Line is one exported record in a JSONL file. Binary payloads are carried
// base64-encoded by encoding/json.
type Line struct {
	ID             string  `json:"id"`
	Timestamp      int64   `json:"ts"`
	ItemType       string  `json:"item_type"`
	Content        *string `json:"content,omitempty"`
	ImageBytes     []byte  `json:"image_bytes,omitempty"`
	FileBytes      []byte  `json:"file_bytes,omitempty"`
	FileName       *string `json:"file_name,omitempty"`
	FileTypeID     *string `json:"file_type_id,omitempty"`
	ContentPreview *string `json:"content_preview,omitempty"`
	ImageWidth     int     `json:"image_width,omitempty"`
	ImageHeight    int     `json:"image_height,omitempty"`
	FileSizeBytes  int64   `json:"file_size_bytes,omitempty"`
	IsFavorite     bool    `json:"is_favorite,omitempty"`
	FavoriteOrder  int     `json:"favorite_order,omitempty"`
}

func toLine(r *record.Record) Line {
	return Line{
		ID:             r.ID,
		Timestamp:      r.Timestamp,
		ItemType:       string(r.ItemType),
		Content:        r.Content,
		ImageBytes:     r.ImageBytes,
		FileBytes:      r.FileBytes,
		FileName:       r.FileName,
		FileTypeID:     r.FileTypeID,
		ContentPreview: r.ContentPreview,
		ImageWidth:     r.ImageWidth,
		ImageHeight:    r.ImageHeight,
		FileSizeBytes:  r.FileSizeBytes,
		IsFavorite:     r.IsFavorite,
		FavoriteOrder:  r.FavoriteOrder,
	}
}

// Export writes clipboard history to a file, newest record first. The file is
// written under a temp name and renamed into place so an existing export is
// preserved on failure.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input Input) (*Output, error) {
	now := time.Now()
	exportedAt := now.UnixMilli()

	format := input.Format
	if format == "" {
		format = FormatJSONL
	}
	if !format.Valid() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown export format: %s", input.Format))
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath = defaultExportPath(cfg, format, now)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	records, err := collect(ctx, database, input.FavoritesOnly)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch format {
	case FormatJSONL:
		body, err = renderJSONL(records, exportedAt)
	case FormatMarkdown:
		body = renderMarkdown(records, now)
	case FormatHTML:
		body, err = renderHTML(records, now)
	}
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(exportPath, body); err != nil {
		return nil, err
	}

	return &Output{
		Path:       exportPath,
		Format:     string(format),
		Count:      len(records),
		ExportedAt: exportedAt,
	}, nil
}

// collect streams the full history from the store, applying the favorites
// filter cursor-side so oversized payloads never sit in memory twice.
func collect(ctx context.Context, database *sql.DB, favoritesOnly bool) ([]record.Record, error) {
	rows, err := db.StreamForExport(ctx, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("export")
		default:
		}

		r, err := db.ScanRecordFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if favoritesOnly && !r.IsFavorite {
			continue
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func renderJSONL(records []record.Record, exportedAt int64) ([]byte, error) {
	var buf bytes.Buffer

	header := Header{
		ClipkeepExport: true,
		SchemaVersion:  "1.0",
		ExportedAt:     exportedAt,
	}
	if err := writeJSONLine(&buf, header); err != nil {
		return nil, err
	}
	for i := range records {
		if err := writeJSONLine(&buf, toLine(&records[i])); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeJSONLine(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return nil
}

// renderMarkdown produces a human-readable digest. Binary records appear as
// one-line summaries; text records are quoted in fenced blocks.
func renderMarkdown(records []record.Record, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Clipboard History\n\nExported %s. %d records.\n",
		now.UTC().Format("2006-01-02 15:04 MST"), len(records))

	for i := range records {
		r := &records[i]
		fmt.Fprintf(&b, "\n## %s\n\n", formatTime(r.Timestamp))
		fmt.Fprintf(&b, "- Type: %s\n", r.ItemType)
		if r.IsFavorite {
			fmt.Fprintf(&b, "- Favorite: #%d\n", r.FavoriteOrder)
		}
		switch r.ItemType {
		case record.ItemText, record.ItemCombined:
			if r.ItemType == record.ItemCombined {
				fmt.Fprintf(&b, "- Image: %dx%d px\n", r.ImageWidth, r.ImageHeight)
			}
			if r.Content != nil {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", fenceSafe(*r.Content))
			}
		case record.ItemImage:
			fmt.Fprintf(&b, "- Image: %dx%d px, %d bytes\n",
				r.ImageWidth, r.ImageHeight, len(r.ImageBytes))
		case record.ItemFile:
			name := ""
			if r.FileName != nil {
				name = *r.FileName
			}
			fmt.Fprintf(&b, "- File: %s (%d bytes)\n", name, r.FileSizeBytes)
		}
	}
	return []byte(b.String())
}

// renderHTML converts the markdown digest through goldmark and wraps it in a
// minimal standalone page.
func renderHTML(records []record.Record, now time.Time) ([]byte, error) {
	md := renderMarkdown(records, now)

	var body bytes.Buffer
	if err := goldmark.Convert(md, &body); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("markdown conversion failed: %w", err))
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Clipboard History</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// writeAtomic writes body to a temp file next to path and renames it into
// place, preserving any existing file on failure.
func writeAtomic(path string, body []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(body); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

func defaultExportPath(cfg *config.Config, format Format, now time.Time) string {
	filename := fmt.Sprintf("history-%s.%s", now.Format("2006-01-02T150405"), format.extension())
	return filepath.Join(cfg.ExportsDir(), filename)
}

// fenceSafe keeps record text from breaking out of its fenced code block.
func fenceSafe(s string) string {
	return strings.ReplaceAll(s, "```", "`​``")
}

func formatTime(unixMilli int64) string {
	return time.UnixMilli(unixMilli).UTC().Format("2006-01-02 15:04:05")
}
