// Package ranking computes deterministic, fully tie-broken boards for
// competition windows, the tiebreaker side competition and the overall
// standings blended with tiebreaker bonuses.
package ranking

import (
	"context"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
)

// ScoreStore reads teams and their scores.
type ScoreStore interface {
	Teams(ctx context.Context, excludeInvisible bool) ([]model.Team, error)
	Score(ctx context.Context, team model.Team, w model.Window) (model.Score, error)
	// OverallBoard returns the pre-ranked aggregate across all windows.
	OverallBoard(ctx context.Context) (model.Board, error)
}

// WindowRegistry resolves competition windows. Window returns an error
// wrapping model.ErrNotFound for unknown codenames.
type WindowRegistry interface {
	Window(ctx context.Context, codename string) (model.Window, error)
	CurrentWindow(ctx context.Context) (model.Window, error)
	Windows(ctx context.Context) ([]model.Window, error)
}

// Cache stores computed boards. Get reports absent for keys never set
// and for keys whose TTL elapsed.
type Cache interface {
	Get(ctx context.Context, key string) (model.Board, bool, error)
	Set(ctx context.Context, key string, board model.Board, ttl time.Duration) error
}

// Board kinds used for metrics and tracing.
const (
	KindWindow     = "window"
	KindTiebreaker = "tiebreaker"
	KindOverall    = "overall"
	KindBlended    = "blended"
)

type noCache struct{}

func (noCache) Get(context.Context, string) (model.Board, bool, error) { return nil, false, nil }

func (noCache) Set(context.Context, string, model.Board, time.Duration) error { return nil }
