package ranking

import (
	"time"

	"github.com/okian/ctfboard/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the board cache. Without one every request recomputes.
func WithCache(c Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithTTL sets how long computed boards stay cached.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.ttl = ttl
	}
}

// WithKeys sets the cache key prefix and the pseudo-window codenames.
func WithKeys(k Keys) Option {
	return func(e *Engine) {
		e.keys = k
	}
}

// WithTiebreaker sets the tiebreaker score table.
func WithTiebreaker(t *Tiebreaker) Option {
	return func(e *Engine) {
		if t != nil {
			e.tiebreaker = t
		}
	}
}

// WithNormalization sets the scale of the overall tiebreaker bonus.
func WithNormalization(n int) Option {
	return func(e *Engine) {
		e.normalization = n
	}
}

// WithWindowTieKey sets the tie key for real windows.
func WithWindowTieKey(f TieKeyFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.windowKey = f
		}
	}
}

// WithOverallTieKey sets the tie key for the blended overall board.
func WithOverallTieKey(f TieKeyFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.overallKey = f
		}
	}
}

// WithTiebreakerTieKey sets the tie key for the tiebreaker board.
func WithTiebreakerTieKey(f TieKeyFunc) Option {
	return func(e *Engine) {
		if f != nil {
			e.tiebreakerKey = f
		}
	}
}

// WithFetchConcurrency bounds concurrent per-team score lookups.
func WithFetchConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fetchConcurrency = n
		}
	}
}

// WithSingleflight collapses concurrent misses for the same key into one
// computation within this process.
func WithSingleflight() Option {
	return func(e *Engine) {
		e.collapse = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer; defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}
