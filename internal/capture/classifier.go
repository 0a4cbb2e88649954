// Package capture turns clipboard snapshots into typed capture candidates.
package capture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clipkeep/clipkeep/internal/clipboard"
	"github.com/clipkeep/clipkeep/internal/config"
	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/record"
)

// Classifier inspects a clipboard snapshot and produces zero or more typed
// capture candidates according to the configured capture mode.
type Classifier struct {
	Mode         config.CaptureMode
	MaxFileBytes int64
	Logger       *slog.Logger
}

// New returns a classifier for the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		Mode:         cfg.CaptureMode,
		MaxFileBytes: cfg.MaxFileBytes,
		Logger:       logger,
	}
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Classify applies the classification precedence:
//
//  1. File references short-circuit everything: the first reference becomes
//     a file candidate regardless of simultaneous text/image data. Unreadable
//     or over-limit files are dropped with a warning, producing nothing.
//  2. Otherwise text and image presence are evaluated independently and the
//     capture-mode table decides what is emitted.
//
// The returned slice carries payload-only records; IDs and timestamps are
// assigned downstream at insert time.
func (c *Classifier) Classify(snap *clipboard.Snapshot) []*record.Record {
	if snap == nil || snap.Empty() {
		return nil
	}

	if snap.HasFiles() {
		rec, err := c.classifyFile(snap)
		if err != nil {
			// Transient capture errors are invisible to the user.
			c.logger().Warn("file capture dropped", "path", snap.FileURLs[0], "error", err)
			return nil
		}
		return []*record.Record{rec}
	}

	hasText := snap.HasText()
	hasImage := snap.HasImage()

	switch {
	case hasText && hasImage:
		return c.classifyBoth(snap)
	case hasText:
		return []*record.Record{textCandidate(*snap.Text)}
	case hasImage:
		return []*record.Record{imageCandidate(snap.ImageBytes)}
	}
	return nil
}

// classifyBoth resolves the {text, image} cell of the capture-mode table.
func (c *Classifier) classifyBoth(snap *clipboard.Snapshot) []*record.Record {
	switch c.Mode {
	case config.CaptureTextOnly:
		return []*record.Record{textCandidate(*snap.Text)}
	case config.CaptureImageOnly:
		return []*record.Record{imageCandidate(snap.ImageBytes)}
	case config.CaptureBoth:
		return []*record.Record{
			textCandidate(*snap.Text),
			imageCandidate(snap.ImageBytes),
		}
	case config.CaptureBothAsOne:
		return []*record.Record{combinedCandidate(*snap.Text, snap.ImageBytes)}
	}
	return nil
}

func (c *Classifier) classifyFile(snap *clipboard.Snapshot) (*record.Record, error) {
	path := snap.FileURLs[0]

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("directory references are not captured")
	}
	if info.Size() > c.MaxFileBytes {
		return nil, errors.NewFileTooLarge(filepath.Base(path), c.MaxFileBytes, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	name := filepath.Base(path)
	rec := &record.Record{
		ItemType:  record.ItemFile,
		FileBytes: data,
		FileName:  &name,
	}
	if snap.FileTypeID != "" {
		typeID := snap.FileTypeID
		rec.FileTypeID = &typeID
	}
	return rec, nil
}

func textCandidate(text string) *record.Record {
	return &record.Record{ItemType: record.ItemText, Content: &text}
}

func imageCandidate(data []byte) *record.Record {
	return &record.Record{ItemType: record.ItemImage, ImageBytes: append([]byte(nil), data...)}
}

func combinedCandidate(text string, data []byte) *record.Record {
	return &record.Record{
		ItemType:   record.ItemCombined,
		Content:    &text,
		ImageBytes: append([]byte(nil), data...),
	}
}
