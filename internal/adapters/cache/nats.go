package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// envelope carries the expiry with the value, so reads honour the TTL
// even before the bucket's max age removes the entry.
type envelope struct {
	ExpiresAt int64  `msgpack:"exp"`
	Value     []byte `msgpack:"v"`
}

// NATS is a Store backed by a JetStream key-value bucket.
type NATS struct {
	kv     jetstream.KeyValue
	now    func() time.Time
	tracer trace.Tracer
}

// NewNATS wraps an existing bucket.
func NewNATS(kv jetstream.KeyValue, opts ...NATSOption) *NATS {
	n := &NATS{
		kv:     kv,
		now:    time.Now,
		tracer: otel.Tracer("github.com/okian/ctfboard/internal/adapters/cache"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// OpenBucket creates or updates the board bucket. maxAge bounds how long
// the server keeps any entry and should be at least the board TTL.
func OpenBucket(ctx context.Context, js jetstream.JetStream, bucket string, maxAge time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "computed leaderboards",
		TTL:         maxAge,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("cache.OpenBucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := n.tracer.Start(ctx, "cache.NATS.Get", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	entry, err := n.kv.Get(ctx, EncodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("cache.NATS.Get %s: %w", key, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(entry.Value(), &env); err != nil {
		return nil, false, fmt.Errorf("cache.NATS.Get %s: %w: %w", key, ErrCorrupt, err)
	}
	if n.now().UnixNano() >= env.ExpiresAt {
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (n *NATS) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache.NATS.Set %s: %w", key, ErrInvalidTTL)
	}
	ctx, span := n.tracer.Start(ctx, "cache.NATS.Set", trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	raw, err := msgpack.Marshal(envelope{ExpiresAt: n.now().Add(ttl).UnixNano(), Value: value})
	if err != nil {
		return fmt.Errorf("cache.NATS.Set %s: %w", key, err)
	}
	if _, err := n.kv.Put(ctx, EncodeKey(key), raw); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache.NATS.Set %s: %w", key, err)
	}
	return nil
}

// EncodeKey maps an arbitrary cache key onto the bucket key alphabet.
// Bytes outside [-_a-zA-Z0-9] become =XX.
func EncodeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "=%02X", c)
		}
	}
	return b.String()
}
