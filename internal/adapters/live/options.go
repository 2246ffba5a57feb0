package live

import (
	"net/http"
	"slices"
	"time"

	"github.com/okian/ctfboard/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithOrigins restricts websocket upgrades to the given origins. Empty or a
// "*" entry allows any origin.
func WithOrigins(origins ...string) Option {
	return func(h *Hub) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		allowed := slices.Clone(origins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, origin)
		}
	}
}

// WithLogger sets the hub's logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides the timestamp stamped on messages.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}
