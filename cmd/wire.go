package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/okian/ctfboard/internal/adapters/cache"
	"github.com/okian/ctfboard/internal/adapters/repository"
	service "github.com/okian/ctfboard/internal/app"
	"github.com/okian/ctfboard/internal/config"
	"github.com/okian/ctfboard/internal/domain/ranking"
	"github.com/okian/ctfboard/pkg/logger"
	"github.com/okian/ctfboard/pkg/metrics"
)

const janitorInterval = time.Minute

var errNeedsPostgres = errors.New("command needs store: postgres")

// openStore opens the configured store. The memory store is seeded so a
// fresh server has something to show.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		db := repository.Open(cfg.PostgresDSN)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closer := func() {
			if err := db.Close(); err != nil {
				logger.Get().Error(context.Background(), "failed to close postgres", logger.Error(err))
			}
		}
		return repository.NewPostgres(db), closer, nil
	default:
		store := repository.NewMemory()
		if cfg.Seed.Teams > 0 {
			res, err := repository.Seed(ctx, store, seedOptions(cfg))
			if err != nil {
				return nil, nil, err
			}
			logger.Get().Info(ctx, "seeded memory store",
				logger.Int("teams", len(res.Teams)),
				logger.Int("windows", len(res.Windows)),
				logger.Int("solves", res.Solves))
		}
		return store, func() {}, nil
	}
}

// seedOptions names the first seeded teams after the tiebreaker table so
// the blended board has bonuses to show.
func seedOptions(cfg *config.Config) repository.SeedOptions {
	names := make([]string, 0, len(cfg.Tiebreaker.Scores))
	for _, s := range cfg.Tiebreaker.Scores {
		names = append(names, s.Team)
	}
	return repository.SeedOptions{
		Names:   names,
		Teams:   cfg.Seed.Teams,
		Windows: cfg.Seed.Windows,
		Seed:    cfg.Seed.Seed,
	}
}

// openCache opens the configured board cache.
func openCache(ctx context.Context, cfg *config.Config) (*cache.Boards, func(), error) {
	switch cfg.Cache {
	case config.CacheNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("ctfboard"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := cache.OpenBucket(ctx, js, cfg.NATSBucket, cfg.BoardCacheDuration)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		closer := func() {
			if err := nc.Drain(); err != nil {
				logger.Get().Error(context.Background(), "failed to drain nats", logger.Error(err))
			}
		}
		return cache.NewBoards(cache.NewNATS(kv)), closer, nil
	default:
		mem := cache.NewMemory()
		janitorCtx, cancel := context.WithCancel(ctx)
		go mem.RunJanitor(janitorCtx, janitorInterval)
		return cache.NewBoards(mem), cancel, nil
	}
}

func buildEngine(cfg *config.Config, store repository.Store, boards ranking.Cache) (*ranking.Engine, error) {
	tb, err := ranking.NewTiebreaker(cfg.Tiebreaker.Table(), cfg.Tiebreaker.Max)
	if err != nil {
		return nil, err
	}
	opts := []ranking.Option{
		ranking.WithCache(boards),
		ranking.WithTTL(cfg.BoardCacheDuration),
		ranking.WithKeys(ranking.Keys{
			Prefix:     cfg.CacheKeyPrefix,
			Overall:    cfg.OverallCodename,
			Tiebreaker: cfg.TiebreakerCodename,
		}),
		ranking.WithTiebreaker(tb),
		ranking.WithNormalization(cfg.ScoreNormalization),
		ranking.WithFetchConcurrency(cfg.FetchConcurrency),
		ranking.WithLogger(logger.Named("ranking")),
	}
	if cfg.Singleflight {
		opts = append(opts, ranking.WithSingleflight())
	}
	return ranking.New(store, store, opts...)
}

func newService(cfg *config.Config, engine *ranking.Engine, store repository.Store) *service.Service {
	return service.New(engine, store,
		service.WithWorkerCount(cfg.RefreshWorkers),
		service.WithQueueSize(cfg.RefreshQueueSize),
		service.WithRefreshInterval(cfg.RefreshInterval),
		service.WithOrigins(cfg.CORSOrigins),
		service.WithWinners(winners(cfg.Winners)),
		service.WithLogger(logger.Named("service")),
	)
}

func winners(w config.Winners) service.WinnersConfig {
	out := service.WinnersConfig{
		TopOverallCount: w.TopOverallCount,
		TopWindowCount:  w.TopWindowCount,
		Overall:         w.Overall,
	}
	for _, ww := range w.Windows {
		out.Windows = append(out.Windows, service.WindowWinners{Window: ww.Window, Teams: ww.Teams})
	}
	return out
}

func metricsOptions(m config.Metrics) []metrics.Option {
	return []metrics.Option{
		metrics.WithEnabled(m.Enabled),
		metrics.WithNamespace(m.Namespace),
		metrics.WithSubsystem(m.Subsystem),
		metrics.WithBuckets(m.Buckets),
		metrics.WithConstLabels(m.Labels),
		metrics.WithSystemInterval(m.SystemInterval),
	}
}
