package repository

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	tracer trace.Tracer
}

// WithClock sets the time source used to pick the current window.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTracer sets the tracer used by the Postgres store.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
