// Package dedupe tracks keys with work in flight so that each key is
// queued at most once until its work completes.
package dedupe

import (
	"context"
	"sync"
	"time"
)

const defaultMaxSize = 4096

// Deduper records pending keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether id is pending and records it
	// if not. It returns true when id was already pending.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id once its work finished or could not be queued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps pending keys with the time they were recorded.
// Keys pending longer than staleAfter are admitted again, so a lost
// release cannot block a key forever.
type inMemoryDeduper struct {
	mu         sync.Mutex
	pending    map[string]time.Time
	maxSize    int // 0 or negative = unbounded
	staleAfter time.Duration
	now        func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		pending: make(map[string]time.Time),
		maxSize: defaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.pending[id]; ok {
		if d.staleAfter <= 0 || now.Sub(at) < d.staleAfter {
			return true
		}
	}

	if d.maxSize > 0 && len(d.pending) >= d.maxSize {
		if _, ok := d.pending[id]; !ok && !d.evictStale(now) {
			// full of live work; treat as pending so the caller drops it
			return true
		}
	}

	d.pending[id] = now
	return false
}

// evictStale drops stale keys and reports whether room was made.
func (d *inMemoryDeduper) evictStale(now time.Time) bool {
	if d.staleAfter <= 0 {
		return false
	}
	freed := false
	for id, at := range d.pending {
		if now.Sub(at) >= d.staleAfter {
			delete(d.pending, id)
			freed = true
		}
	}
	return freed
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.pending))
}
