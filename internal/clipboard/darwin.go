//go:build darwin

package clipboard

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"os/exec"
	"sync"

	"github.com/clipkeep/clipkeep/internal/record"
)

// Pasteboard reads and writes the macOS general pasteboard via pbpaste and
// pbcopy. pbpaste exposes no native change counter, so the counter is
// synthesized by hashing the current text contents on each call: the counter
// advances whenever the hash differs from the last observed one.
//
// Known limitations of shelling out instead of binding NSPasteboard: only
// text payloads are visible (image and file flavors never reach the
// classifier), a change that restores the previous text goes undetected, and
// each poll tick costs one pbpaste exec (two on ticks that also Read).
type Pasteboard struct {
	mu       sync.Mutex
	lastHash uint64
	count    uint64
	seeded   bool
}

// NewSystem returns the macOS pasteboard source.
func NewSystem() Source {
	return &Pasteboard{}
}

func (p *Pasteboard) ChangeCount() (uint64, error) {
	out, err := exec.Command("pbpaste").Output()
	if err != nil {
		return 0, fmt.Errorf("pbpaste: %w", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(out)
	sum := h.Sum64()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seeded {
		p.seeded = true
		p.lastHash = sum
		return p.count, nil
	}
	if sum != p.lastHash {
		p.lastHash = sum
		p.count++
	}
	return p.count, nil
}

func (p *Pasteboard) Read() (*Snapshot, error) {
	out, err := exec.Command("pbpaste").Output()
	if err != nil {
		return nil, fmt.Errorf("pbpaste: %w", err)
	}
	snap := &Snapshot{}
	if len(out) > 0 {
		text := string(out)
		snap.Text = &text
	}
	return snap, nil
}

func (p *Pasteboard) Write(rec *record.Record) error {
	if rec.Content == nil {
		return fmt.Errorf("pasteboard write supports text payloads only")
	}
	cmd := exec.Command("pbcopy")
	cmd.Stdin = bytes.NewReader([]byte(*rec.Content))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pbcopy: %w", err)
	}

	// Fold our own write into the synthesized counter so the poll loop does
	// not treat it as a fresh external change.
	h := fnv.New64a()
	_, _ = h.Write([]byte(*rec.Content))
	p.mu.Lock()
	p.lastHash = h.Sum64()
	p.seeded = true
	p.mu.Unlock()
	return nil
}
