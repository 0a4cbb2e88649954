package retention

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/clipkeep/clipkeep/internal/record"
)

// DefaultThumbCacheSize bounds the number of cached thumbnails regardless of
// the inactivity threshold.
const DefaultThumbCacheSize = 512

// ThumbManager caches generated thumbnails per record and evicts the ones
// that have not been touched within the inactivity threshold. The cache and
// its access bookkeeping are purely process-local: payloads in the store are
// never affected, and a dropped thumbnail is regenerated lazily on the next
// access.
type ThumbManager struct {
	cache *expirable.LRU[string, []byte]

	mu         sync.Mutex
	lastAccess map[string]time.Time

	threshold time.Duration
	maxPx     int
	logger    *slog.Logger

	now func() time.Time
}

// NewThumbManager creates a thumbnail manager. threshold is the inactivity
// window after which a record's cached thumbnail becomes evictable; maxPx is
// the longest thumbnail side.
func NewThumbManager(threshold time.Duration, maxPx int, logger *slog.Logger) *ThumbManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThumbManager{
		cache:      expirable.NewLRU[string, []byte](DefaultThumbCacheSize, nil, threshold),
		lastAccess: make(map[string]time.Time),
		threshold:  threshold,
		maxPx:      maxPx,
		logger:     logger,
		now:        time.Now,
	}
}

// Touch refreshes the last-access timestamp for a record. Any explicit
// access (select, copy, display) routes through here.
func (m *ThumbManager) Touch(id string) {
	m.mu.Lock()
	m.lastAccess[id] = m.now()
	m.mu.Unlock()
}

// Thumbnail returns the cached thumbnail for an image-bearing record,
// generating and caching it on a miss. The access timestamp is refreshed
// either way.
func (m *ThumbManager) Thumbnail(rec *record.Record) ([]byte, error) {
	m.Touch(rec.ID)

	if thumb, ok := m.cache.Get(rec.ID); ok {
		return thumb, nil
	}

	thumb, err := record.Thumbnail(rec.ImageBytes, m.maxPx)
	if err != nil {
		return nil, err
	}
	m.cache.Add(rec.ID, thumb)
	return thumb, nil
}

// Cached reports whether a thumbnail is currently cached for the record,
// without counting as an access.
func (m *ThumbManager) Cached(id string) bool {
	return m.cache.Contains(id)
}

// Forget drops all bookkeeping for a deleted record.
func (m *ThumbManager) Forget(id string) {
	m.cache.Remove(id)
	m.mu.Lock()
	delete(m.lastAccess, id)
	m.mu.Unlock()
}

// Cleanup evicts the cached thumbnail of every record whose last access is
// older than the inactivity threshold and drops its bookkeeping entry.
// Returns the number of evicted entries.
func (m *ThumbManager) Cleanup() int {
	cutoff := m.now().Add(-m.threshold)

	m.mu.Lock()
	var stale []string
	for id, at := range m.lastAccess {
		if at.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(m.lastAccess, id)
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.cache.Remove(id)
	}

	if len(stale) > 0 {
		m.logger.Debug("thumbnail cache cleaned", "evicted", len(stale))
	}
	return len(stale)
}
