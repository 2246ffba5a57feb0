// Package cache stores computed boards under a bounded time-to-live, either
// in process or in a NATS JetStream key-value bucket shared by replicas.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/vmihailenco/msgpack/v5"
)

// Store is a byte-valued key-value store with per-entry expiry. Get
// reports absent for keys never set and for keys whose TTL elapsed. Set
// overwrites.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Boards adapts a Store to typed boards, encoding them with msgpack.
type Boards struct {
	store Store
}

// NewBoards wraps store.
func NewBoards(store Store) *Boards {
	return &Boards{store: store}
}

// Get returns the cached board for key.
func (b *Boards) Get(ctx context.Context, key string) (model.Board, bool, error) {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var board model.Board
	if err := msgpack.Unmarshal(raw, &board); err != nil {
		return nil, false, fmt.Errorf("cache.Boards.Get %s: %w: %w", key, ErrCorrupt, err)
	}
	return board, true, nil
}

// Set stores board under key for ttl.
func (b *Boards) Set(ctx context.Context, key string, board model.Board, ttl time.Duration) error {
	if board == nil {
		board = model.Board{}
	}
	raw, err := msgpack.Marshal(board)
	if err != nil {
		return fmt.Errorf("cache.Boards.Set %s: %w", key, err)
	}
	return b.store.Set(ctx, key, raw, ttl)
}
