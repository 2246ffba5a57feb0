package cache

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock sets the time source used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NATSOption configures a NATS store.
type NATSOption func(*NATS)

// WithNATSClock sets the time source used for expiry.
func WithNATSClock(now func() time.Time) NATSOption {
	return func(n *NATS) {
		if now != nil {
			n.now = now
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) NATSOption {
	return func(n *NATS) {
		if t != nil {
			n.tracer = t
		}
	}
}
