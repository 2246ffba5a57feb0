package worker

import (
	"time"

	"github.com/okian/ctfboard/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPublisher sends every refreshed board to p.
func WithPublisher(p Publisher) Option {
	return func(w *InMemoryWorker) { w.publisher = p }
}

// WithReleaser clears the pending marker for each dequeued codename.
func WithReleaser(r Releaser) Option {
	return func(w *InMemoryWorker) { w.releaser = r }
}

// WithRefreshTimeout bounds a single refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}
