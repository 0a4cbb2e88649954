package clipboard

import (
	"sync"

	"github.com/clipkeep/clipkeep/internal/record"
)

// Fake is an in-memory Source for tests. Mutators bump the change counter
// exactly like a real clipboard write would.
type Fake struct {
	mu    sync.Mutex
	snap  Snapshot
	count uint64

	// Written records every payload handed to Write, newest last.
	Written []*record.Record
}

// NewFake returns an empty fake clipboard.
func NewFake() *Fake {
	return &Fake{}
}

// ChangeCount implements Source.
func (f *Fake) ChangeCount() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

// Read implements Source.
func (f *Fake) Read() (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snap
	return &snap, nil
}

// Write implements Source. The payload is reflected back as the current
// snapshot, so a subsequent Read sees what was written.
func (f *Fake) Write(rec *record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Written = append(f.Written, rec)
	f.snap = Snapshot{}
	if rec.Content != nil {
		text := *rec.Content
		f.snap.Text = &text
	}
	if len(rec.ImageBytes) > 0 {
		f.snap.ImageBytes = append([]byte(nil), rec.ImageBytes...)
	}
	if rec.FileName != nil {
		f.snap.FileURLs = []string{*rec.FileName}
	}
	f.count++
	return nil
}

// SetText puts a plain-text snapshot on the fake clipboard.
func (f *Fake) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = Snapshot{Text: &text}
	f.count++
}

// SetImage puts an image snapshot on the fake clipboard.
func (f *Fake) SetImage(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = Snapshot{ImageBytes: append([]byte(nil), data...)}
	f.count++
}

// SetTextAndImage puts a snapshot exposing both representations.
func (f *Fake) SetTextAndImage(text string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = Snapshot{Text: &text, ImageBytes: append([]byte(nil), data...)}
	f.count++
}

// SetFiles puts file references on the fake clipboard. Extra representations
// may ride along, mirroring real pasteboards.
func (f *Fake) SetFiles(paths []string, typeID string, text *string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = Snapshot{FileURLs: append([]string(nil), paths...), FileTypeID: typeID, Text: text}
	f.count++
}

// Clear empties the clipboard. Clearing counts as a change.
func (f *Fake) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = Snapshot{}
	f.count++
}
