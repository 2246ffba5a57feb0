package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
	"github.com/okian/ctfboard/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Engine defaults.
const (
	DefaultTTL              = 60 * time.Second
	DefaultNormalization    = 1000
	DefaultKeyPrefix        = "ctfboard_board_"
	DefaultOverall          = "overall"
	DefaultTiebreaker       = "tiebreaker"
	defaultFetchConcurrency = 16
)

// Engine computes and caches boards.
type Engine struct {
	scores  ScoreStore
	windows WindowRegistry
	cache   Cache

	keys          Keys
	ttl           time.Duration
	tiebreaker    *Tiebreaker
	normalization int

	windowKey     TieKeyFunc
	overallKey    TieKeyFunc
	tiebreakerKey TieKeyFunc

	fetchConcurrency int
	collapse         bool
	group            singleflight.Group

	logger logger.Logger
	tracer trace.Tracer
}

// New creates an engine over the given stores.
func New(scores ScoreStore, windows WindowRegistry, opts ...Option) (*Engine, error) {
	e := &Engine{
		scores:  scores,
		windows: windows,
		cache:   noCache{},
		keys: Keys{
			Prefix:     DefaultKeyPrefix,
			Overall:    DefaultOverall,
			Tiebreaker: DefaultTiebreaker,
		},
		ttl:              DefaultTTL,
		tiebreaker:       &Tiebreaker{max: 1},
		normalization:    DefaultNormalization,
		windowKey:        ByAchievedAt,
		overallKey:       ByPriorRank,
		tiebreakerKey:    ByTeamID,
		fetchConcurrency: defaultFetchConcurrency,
		logger:           logger.Get().Named("ranking"),
		tracer:           otel.Tracer("github.com/okian/ctfboard/internal/domain/ranking"),
	}

	for _, opt := range opts {
		opt(e)
	}

	switch {
	case scores == nil || windows == nil:
		return nil, fmt.Errorf("%w: score store and window registry are required", ErrInvalidConfig)
	case e.keys.Overall == "" || e.keys.Tiebreaker == "":
		return nil, fmt.Errorf("%w: pseudo-window codenames must be set", ErrInvalidConfig)
	case e.keys.Overall == e.keys.Tiebreaker:
		return nil, fmt.Errorf("%w: overall and tiebreaker codenames collide", ErrInvalidConfig)
	case e.ttl <= 0:
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	case e.normalization < 0:
		return nil, fmt.Errorf("%w: normalization must not be negative", ErrInvalidConfig)
	}
	return e, nil
}

// Keys returns the cache key composer.
func (e *Engine) Keys() Keys { return e.keys }

// Normalization returns the tiebreaker bonus scale.
func (e *Engine) Normalization() int { return e.normalization }

// Tiebreaker returns the tiebreaker table.
func (e *Engine) Tiebreaker() *Tiebreaker { return e.tiebreaker }

// Board returns the board for codename: the blended overall board, the
// tiebreaker board, or a real window's board. Unknown codenames yield an
// error wrapping model.ErrNotFound.
func (e *Engine) Board(ctx context.Context, codename string) (model.Board, error) {
	return e.board(ctx, "ranking.Board", codename, false)
}

// Refresh recomputes the board for codename and overwrites its cache entry.
func (e *Engine) Refresh(ctx context.Context, codename string) (model.Board, error) {
	return e.board(ctx, "ranking.Refresh", codename, true)
}

func (e *Engine) board(ctx context.Context, op, codename string, force bool) (board model.Board, err error) {
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("board.codename", codename),
		attribute.Bool("board.force", force),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("board.entries", len(board)))
		}
		span.End()
	}()

	switch codename {
	case e.keys.Overall:
		return e.blended(ctx, force)
	case e.keys.Tiebreaker:
		return e.tiebreakerBoard(ctx, force)
	}

	if e.keys.Reserved(codename) {
		return nil, fmt.Errorf("%s %q: %w", op, codename, ErrReservedCodename)
	}
	w, err := e.windows.Window(ctx, codename)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", op, codename, err)
	}
	return e.windowBoard(ctx, w, force)
}

// WindowBoard returns the cached board of a real window.
func (e *Engine) WindowBoard(ctx context.Context, w model.Window) (model.Board, error) {
	return e.windowBoard(ctx, w, false)
}

// TiebreakerBoard returns the cached board of the tiebreaker competition.
func (e *Engine) TiebreakerBoard(ctx context.Context) (model.Board, error) {
	return e.tiebreakerBoard(ctx, false)
}

// OverallBoard returns the cached plain overall board.
func (e *Engine) OverallBoard(ctx context.Context) (model.Board, error) {
	return e.overall(ctx, false)
}

// BlendedBoard returns the cached overall board with tiebreaker bonuses.
func (e *Engine) BlendedBoard(ctx context.Context) (model.Board, error) {
	return e.blended(ctx, false)
}

func (e *Engine) windowBoard(ctx context.Context, w model.Window, force bool) (model.Board, error) {
	if e.keys.Reserved(w.Codename) {
		return nil, fmt.Errorf("ranking.WindowBoard %q: %w", w.Codename, ErrReservedCodename)
	}
	return e.cached(ctx, KindWindow, e.keys.Board(w.Codename), force, func(ctx context.Context) (model.Board, error) {
		teams, err := e.scores.Teams(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("teams: %w", err)
		}

		rows := make([]model.TeamScore, len(teams))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.fetchConcurrency)
		for i, t := range teams {
			g.Go(func() error {
				s, err := e.scores.Score(gctx, t, w)
				if err != nil {
					return fmt.Errorf("score %s in %s: %w", t.Name, w.Codename, err)
				}
				rows[i] = model.TeamScore{Team: t, Score: s.Points, AchievedAt: s.AchievedAt}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return Rank(rows, &w, e.windowKey)
	})
}

func (e *Engine) tiebreakerBoard(ctx context.Context, force bool) (model.Board, error) {
	return e.cached(ctx, KindTiebreaker, e.keys.Board(e.keys.Tiebreaker), force, func(ctx context.Context) (model.Board, error) {
		teams, err := e.scores.Teams(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("teams: %w", err)
		}

		rows := make([]model.TeamScore, 0, e.tiebreaker.Len())
		for _, t := range teams {
			if s, ok := e.tiebreaker.Score(t.Name); ok {
				rows = append(rows, model.TeamScore{Team: t, Score: s})
			}
		}
		return Rank(rows, nil, e.tiebreakerKey)
	})
}

func (e *Engine) overall(ctx context.Context, force bool) (model.Board, error) {
	return e.cached(ctx, KindOverall, e.keys.Board(e.keys.Overall), force, func(ctx context.Context) (model.Board, error) {
		board, err := e.scores.OverallBoard(ctx)
		if err != nil {
			return nil, fmt.Errorf("overall board: %w", err)
		}
		return board, nil
	})
}

func (e *Engine) blended(ctx context.Context, force bool) (model.Board, error) {
	return e.cached(ctx, KindBlended, e.keys.Blended(), force, func(ctx context.Context) (model.Board, error) {
		base, err := e.overall(ctx, force)
		if err != nil {
			return nil, err
		}

		rows := make([]model.TeamScore, len(base))
		for i, entry := range base {
			rows[i] = model.TeamScore{
				Team:      entry.Team,
				Score:     entry.Score + e.tiebreaker.Bonus(entry.Team.Name, e.normalization),
				PriorRank: entry.Rank,
			}
		}
		return Rank(rows, nil, e.overallKey)
	})
}

// cached serves key from the cache or computes and stores it. Cache
// failures count as misses.
func (e *Engine) cached(ctx context.Context, kind, key string, force bool, compute func(context.Context) (model.Board, error)) (model.Board, error) {
	if !force {
		board, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.RecordCacheError("get")
			metrics.RecordErrorByComponent("ranking", "cache_get")
			e.logger.Warn(ctx, "board cache get failed, recomputing",
				logger.String("key", key), logger.Error(err))
		case ok:
			metrics.RecordCacheHit()
			metrics.RecordBoardRequest(kind, "hit")
			return board, nil
		default:
			metrics.RecordCacheMiss()
		}
	}

	board, err := e.compute(ctx, kind, key, compute)
	if err != nil {
		metrics.RecordBoardRequest(kind, "error")
		return nil, err
	}
	metrics.RecordBoardRequest(kind, "miss")
	return board, nil
}

func (e *Engine) compute(ctx context.Context, kind, key string, compute func(context.Context) (model.Board, error)) (model.Board, error) {
	run := func(ctx context.Context) (model.Board, error) {
		start := time.Now()
		board, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		metrics.RecordBoardComputation(kind, float64(time.Since(start).Microseconds())/1000, len(board))

		if err := e.cache.Set(ctx, key, board, e.ttl); err != nil {
			metrics.RecordCacheError("set")
			metrics.RecordErrorByComponent("ranking", "cache_set")
			e.logger.Warn(ctx, "board cache set failed",
				logger.String("key", key), logger.Error(err))
		}
		e.logger.Debug(ctx, "board computed",
			logger.String("kind", kind), logger.String("key", key),
			logger.Int("entries", len(board)), logger.Duration("took", time.Since(start)))
		return board, nil
	}

	if !e.collapse {
		return run(ctx)
	}

	// Waiters share one computation, so it must not die with the caller
	// that started it.
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) { return run(shared) })
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(model.Board), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
