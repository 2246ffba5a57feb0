package dedupe

import "time"

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of pending keys.
// If maxSize <= 0 the deduper is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithStaleAfter re-admits keys pending for longer than ttl.
func WithStaleAfter(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		d.staleAfter = ttl
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(d *inMemoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
