package ranking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/domain/model"
)

var errBroken = errors.New("broken")

type fakeStore struct {
	mu      sync.Mutex
	teams   []model.Team
	scores  map[uuid.UUID]map[string]model.Score
	overall model.Board
	gate    chan struct{}

	teamCalls    atomic.Int64
	scoreCalls   atomic.Int64
	overallCalls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{scores: map[uuid.UUID]map[string]model.Score{}}
}

func (s *fakeStore) addTeam(name string, standing model.Standing) model.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := model.Team{ID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)), Name: name, Standing: standing}
	s.teams = append(s.teams, t)
	return t
}

func (s *fakeStore) setScore(t model.Team, window string, points int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scores[t.ID] == nil {
		s.scores[t.ID] = map[string]model.Score{}
	}
	s.scores[t.ID][window] = model.Score{Points: points, AchievedAt: at}
}

func (s *fakeStore) Teams(ctx context.Context, excludeInvisible bool) ([]model.Team, error) {
	s.teamCalls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if excludeInvisible && !t.Visible() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) Score(ctx context.Context, team model.Team, w model.Window) (model.Score, error) {
	s.scoreCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[team.ID][w.Codename], nil
}

func (s *fakeStore) OverallBoard(ctx context.Context) (model.Board, error) {
	s.overallCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(model.Board(nil), s.overall...), nil
}

type fakeRegistry struct {
	windows map[string]model.Window
}

func (r *fakeRegistry) Window(ctx context.Context, codename string) (model.Window, error) {
	w, ok := r.windows[codename]
	if !ok {
		return model.Window{}, fmt.Errorf("window %q: %w", codename, model.ErrNotFound)
	}
	return w, nil
}

func (r *fakeRegistry) CurrentWindow(ctx context.Context) (model.Window, error) {
	for _, w := range r.windows {
		return w, nil
	}
	return model.Window{}, model.ErrNotFound
}

func (r *fakeRegistry) Windows(ctx context.Context) ([]model.Window, error) {
	out := make([]model.Window, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	return out, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]model.Board
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]model.Board{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (model.Board, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.entries[key]
	return b, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, board model.Board, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = board
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}
