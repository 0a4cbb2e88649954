// Package clipboard abstracts the system clipboard behind a Source
// interface so the classifier and dedup logic never touch the platform.
// A platform with a genuine change notification can substitute its own
// implementation without touching anything downstream.
package clipboard

import "github.com/clipkeep/clipkeep/internal/record"

// Snapshot is a point-in-time read of the clipboard's representations.
// Text and image presence are independent; a document can expose both.
type Snapshot struct {
	Text       *string
	ImageBytes []byte

	// FileURLs are local file paths exposed by the clipboard. When present,
	// the first reference wins over any simultaneous text/image data.
	FileURLs   []string
	FileTypeID string
}

// HasText reports whether the snapshot carries a plain-text representation.
func (s *Snapshot) HasText() bool { return s.Text != nil }

// HasImage reports whether the snapshot carries decoded image data.
func (s *Snapshot) HasImage() bool { return len(s.ImageBytes) > 0 }

// HasFiles reports whether the snapshot exposes local file references.
func (s *Snapshot) HasFiles() bool { return len(s.FileURLs) > 0 }

// Empty reports whether the snapshot carries nothing capturable.
func (s *Snapshot) Empty() bool {
	return !s.HasText() && !s.HasImage() && !s.HasFiles()
}

// Source is the engine's view of the system clipboard.
type Source interface {
	// ChangeCount returns a counter that increases whenever the clipboard
	// contents change. Absolute values are meaningless; only inequality
	// against the last-seen value matters.
	ChangeCount() (uint64, error)

	// Read returns the current clipboard snapshot.
	Read() (*Snapshot, error)

	// Write replaces the clipboard contents with the record's payload
	// (clear, then set). It bumps the change counter like any other write.
	Write(rec *record.Record) error
}
