// Package service ties the ranking engine to the refresh pipeline, the live
// hub and the presenter, and implements what the HTTP API depends on.
package service

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/adapters/live"
	eventqueue "github.com/okian/ctfboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/ctfboard/internal/adapters/mq/worker"
	"github.com/okian/ctfboard/internal/domain/dedupe"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
	"github.com/okian/ctfboard/pkg/logger"
	"github.com/okian/ctfboard/pkg/metrics"
)

// Refresh reasons.
const (
	ReasonAPI     = "api"
	ReasonWarmer  = "warmer"
	ReasonStartup = "startup"
)

// Engine is the ranking engine as the service uses it.
type Engine interface {
	BoardSource
	Refresh(ctx context.Context, codename string) (model.Board, error)
}

// Store is the read side of the repository.
type Store interface {
	ranking.ScoreStore
	ranking.WindowRegistry
}

// WindowInfo is a window as listed by the API.
type WindowInfo struct {
	model.Window
	Ended  bool `json:"ended"`
	Active bool `json:"active"`
}

// RefreshStatus reports what happened to a refresh request.
type RefreshStatus struct {
	Codename  string `json:"codename"`
	Duplicate bool   `json:"duplicate"`
}

// Service implements the API dependencies for the board system.
type Service struct {
	mu sync.RWMutex

	engine    Engine
	store     Store
	presenter *Presenter

	deduper dedupe.Deduper
	queue   eventqueue.Queue
	pool    *workerpool.Pool
	hub     *live.Hub

	workerCount     int
	queueSize       int
	refreshInterval time.Duration
	staleAfter      time.Duration
	origins         []string
	winners         WinnersConfig
	now             func() time.Time

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval sets how often every board is re-warmed. Zero
// disables the warmer.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithOrigins limits which browser origins may open live connections.
func WithOrigins(origins []string) Option {
	return func(s *Service) { s.origins = origins }
}

// WithWinners sets the published winners list.
func WithWinners(w WinnersConfig) Option {
	return func(s *Service) { s.winners = w }
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over engine and store.
func New(engine Engine, store Store, opts ...Option) *Service {
	s := &Service{
		engine:          engine,
		store:           store,
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		refreshInterval: 30 * time.Second,
		staleAfter:      5 * time.Minute,
		now:             time.Now,
		logger:          logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.presenter = NewPresenter(engine, store, s.now)
	return s
}

// Start launches the live hub, the refresh workers and the warmer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting board service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.queueSize),
		dedupe.WithStaleAfter(s.staleAfter),
	)
	s.hub = live.NewHub(
		live.WithOrigins(s.origins...),
		live.WithLogger(s.logger.Named("live")),
		live.WithClock(s.now),
	)
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.engine,
		workerpool.WithPublisher(s.hub),
		workerpool.WithReleaser(s.deduper),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(runCtx)
	}()
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = s.now()

	if s.refreshInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.warm(runCtx)
		}()
	}

	s.logger.Info(ctx, "board service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("refreshInterval", s.refreshInterval),
	)
	return nil
}

// Stop drains the refresh workers and closes live connections.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool, cancel := s.pool, s.cancel
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping board service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	cancel()
	s.wg.Wait()
	s.logger.Info(ctx, "board service stopped")
}

// warm enqueues every board at startup and on every tick.
func (s *Service) warm(ctx context.Context) {
	s.enqueueAll(ctx, ReasonStartup)

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueAll(ctx, ReasonWarmer)
		}
	}
}

func (s *Service) enqueueAll(ctx context.Context, reason string) {
	keys := s.engine.Keys()
	codenames := []string{keys.Overall, keys.Tiebreaker}
	windows, err := s.store.Windows(ctx)
	if err != nil {
		s.logger.Error(ctx, "list windows for warming", logger.Error(err))
	}
	for _, w := range windows {
		if keys.Reserved(w.Codename) {
			s.logger.Warn(ctx, "window codename is reserved, not warming", logger.String("codename", w.Codename))
			continue
		}
		codenames = append(codenames, w.Codename)
	}
	for _, c := range codenames {
		if _, err := s.enqueue(ctx, c, reason); err != nil {
			s.logger.Debug(ctx, "warm skipped", logger.String("codename", c), logger.Error(err))
		}
	}
}

// RequestRefresh queues a recompute of codename. A codename already queued
// is reported as a duplicate rather than queued twice.
func (s *Service) RequestRefresh(ctx context.Context, codename string) (RefreshStatus, error) {
	if err := s.resolve(ctx, codename); err != nil {
		return RefreshStatus{}, err
	}
	return s.enqueue(ctx, codename, ReasonAPI)
}

func (s *Service) enqueue(ctx context.Context, codename, reason string) (RefreshStatus, error) {
	s.mu.RLock()
	started, deduper, q := s.started, s.deduper, s.queue
	s.mu.RUnlock()
	if !started {
		return RefreshStatus{}, ErrNotStarted
	}

	status := RefreshStatus{Codename: codename}
	if deduper.SeenAndRecord(ctx, codename) {
		metrics.RecordRefreshDuplicate()
		status.Duplicate = true
		return status, nil
	}
	if !q.Enqueue(ctx, eventqueue.RefreshRequest{Codename: codename, Reason: reason, RequestedAt: s.now()}) {
		deduper.Unrecord(ctx, codename)
		return RefreshStatus{}, ErrBackpressure
	}
	return status, nil
}

// resolve checks that codename names a board.
func (s *Service) resolve(ctx context.Context, codename string) error {
	keys := s.engine.Keys()
	if keys.IsPseudo(codename) {
		return nil
	}
	if keys.Reserved(codename) {
		return fmt.Errorf("service.resolve %q: %w", codename, ranking.ErrReservedCodename)
	}
	if _, err := s.store.Window(ctx, codename); err != nil {
		return fmt.Errorf("service.resolve %q: %w", codename, err)
	}
	return nil
}

// Present builds the view for codename.
func (s *Service) Present(ctx context.Context, codename string) (View, error) {
	return s.presenter.Present(ctx, codename)
}

// DefaultCodename returns the board shown when none is named.
func (s *Service) DefaultCodename(ctx context.Context) (string, error) {
	return s.presenter.DefaultCodename(ctx)
}

// Board returns the publicly viewable board for codename.
func (s *Service) Board(ctx context.Context, codename string) (model.Board, error) {
	v, err := s.Present(ctx, codename)
	if err != nil {
		return nil, err
	}
	return v.Board, nil
}

// Entry finds one team on a board. team is a team name or ID.
func (s *Service) Entry(ctx context.Context, codename, team string) (model.Entry, error) {
	board, err := s.Board(ctx, codename)
	if err != nil {
		return model.Entry{}, err
	}
	if e, ok := board.FindByName(team); ok {
		return e, nil
	}
	if id, err := uuid.Parse(team); err == nil {
		if e, ok := board.Find(id); ok {
			return e, nil
		}
	}
	return model.Entry{}, fmt.Errorf("service.Entry %q on %q: %w", team, codename, ErrTeamNotOnBoard)
}

// Windows lists every window with its state.
func (s *Service) Windows(ctx context.Context) ([]WindowInfo, error) {
	windows, err := s.store.Windows(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Windows: %w", err)
	}
	now := s.now()
	out := make([]WindowInfo, len(windows))
	for i, w := range windows {
		out[i] = WindowInfo{Window: w, Ended: w.Ended(now), Active: w.Active(now)}
	}
	return out, nil
}

// Subscribe streams codename to a websocket client, starting with the
// current board.
func (s *Service) Subscribe(w http.ResponseWriter, r *http.Request, codename string, initial model.Board) error {
	s.mu.RLock()
	hub, started := s.hub, s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return hub.Serve(w, r, codename, initial)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"refreshInterval": s.refreshInterval.String(),
	}
	if s.started {
		stats["liveSubscribers"] = s.hub.Subscribers()
		ctx := context.Background()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["pendingRefreshes"] = s.deduper.Size()
		stats["refreshesProcessed"] = s.pool.Processed()
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	}
	return stats
}
