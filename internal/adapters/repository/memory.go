package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
)

type tally struct {
	points int
	last   time.Time
}

func (t *tally) add(points int, at time.Time) {
	t.points += points
	if at.After(t.last) {
		t.last = at
	}
}

type solveKey struct {
	team    uuid.UUID
	window  string
	problem string
}

// Memory keeps everything in process. It backs development runs and tests.
type Memory struct {
	mu      sync.RWMutex
	teams   map[uuid.UUID]model.Team
	names   map[string]uuid.UUID
	windows map[string]model.Window
	tallies map[uuid.UUID]map[string]*tally
	solved  map[solveKey]struct{}
	now     func() time.Time
}

// NewMemory creates an empty store.
func NewMemory(opts ...Option) *Memory {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory{
		teams:   make(map[uuid.UUID]model.Team),
		names:   make(map[string]uuid.UUID),
		windows: make(map[string]model.Window),
		tallies: make(map[uuid.UUID]map[string]*tally),
		solved:  make(map[solveKey]struct{}),
		now:     o.now,
	}
}

// Teams returns teams ordered by name.
func (m *Memory) Teams(ctx context.Context, excludeInvisible bool) ([]model.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Team, 0, len(m.teams))
	for _, t := range m.teams {
		if excludeInvisible && !t.Visible() {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b model.Team) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Score returns the team's points in w and the time of its last solve there.
func (m *Memory) Score(ctx context.Context, team model.Team, w model.Window) (model.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.teams[team.ID]; !ok {
		return model.Score{}, fmt.Errorf("repository.Memory.Score %s: %w", team.Name, ErrTeamNotFound)
	}
	t, ok := m.tallies[team.ID][w.Codename]
	if !ok {
		return model.Score{}, nil
	}
	return model.Score{Points: t.points, AchievedAt: t.last}, nil
}

// OverallBoard ranks visible teams by points across all windows, ties
// going to the team whose last solve came first.
func (m *Memory) OverallBoard(ctx context.Context) (model.Board, error) {
	m.mu.RLock()
	rows := make([]model.TeamScore, 0, len(m.teams))
	for id, t := range m.teams {
		if !t.Visible() {
			continue
		}
		var total tally
		for _, wt := range m.tallies[id] {
			total.add(wt.points, wt.last)
		}
		rows = append(rows, model.TeamScore{Team: t, Score: total.points, AchievedAt: total.last})
	}
	m.mu.RUnlock()

	return ranking.Rank(rows, nil, ranking.ByAchievedAt)
}

// Window returns the window named codename.
func (m *Memory) Window(ctx context.Context, codename string) (model.Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.windows[codename]
	if !ok {
		return model.Window{}, fmt.Errorf("repository.Memory.Window %q: %w", codename, ErrWindowNotFound)
	}
	return w, nil
}

// Windows returns all windows ordered by start.
func (m *Memory) Windows(ctx context.Context) ([]model.Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b model.Window) int { return a.Start.Compare(b.Start) })
	return out, nil
}

// CurrentWindow returns the window the competition is in at this moment.
func (m *Memory) CurrentWindow(ctx context.Context) (model.Window, error) {
	windows, err := m.Windows(ctx)
	if err != nil {
		return model.Window{}, err
	}
	w, ok := currentWindow(windows, m.now())
	if !ok {
		return model.Window{}, fmt.Errorf("repository.Memory.CurrentWindow: %w", ErrWindowNotFound)
	}
	return w, nil
}

// CreateTeam adds a team. Names and IDs are unique.
func (m *Memory) CreateTeam(ctx context.Context, t model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[t.ID]; ok {
		return fmt.Errorf("repository.Memory.CreateTeam %s: %w", t.ID, ErrDuplicate)
	}
	if _, ok := m.names[t.Name]; ok {
		return fmt.Errorf("repository.Memory.CreateTeam %q: %w", t.Name, ErrDuplicate)
	}
	m.teams[t.ID] = t
	m.names[t.Name] = t.ID
	return nil
}

// CreateWindow adds a window.
func (m *Memory) CreateWindow(ctx context.Context, w model.Window) error {
	if err := validateWindow(w); err != nil {
		return fmt.Errorf("repository.Memory.CreateWindow: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.windows[w.Codename]; ok {
		return fmt.Errorf("repository.Memory.CreateWindow %q: %w", w.Codename, ErrDuplicate)
	}
	m.windows[w.Codename] = w
	return nil
}

// RecordSolve adds a correct submission. A problem counts once per team.
func (m *Memory) RecordSolve(ctx context.Context, s model.Solve) error {
	if s.Points < 0 {
		return fmt.Errorf("repository.Memory.RecordSolve: %w", errNegativeScore)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[s.TeamID]; !ok {
		return fmt.Errorf("repository.Memory.RecordSolve %s: %w", s.TeamID, ErrTeamNotFound)
	}
	if _, ok := m.windows[s.Window]; !ok {
		return fmt.Errorf("repository.Memory.RecordSolve %q: %w", s.Window, ErrWindowNotFound)
	}
	key := solveKey{team: s.TeamID, window: s.Window, problem: s.Problem}
	if _, ok := m.solved[key]; ok {
		return fmt.Errorf("repository.Memory.RecordSolve %s/%s: %w", s.Window, s.Problem, ErrDuplicate)
	}
	m.solved[key] = struct{}{}

	if m.tallies[s.TeamID] == nil {
		m.tallies[s.TeamID] = make(map[string]*tally)
	}
	t := m.tallies[s.TeamID][s.Window]
	if t == nil {
		t = &tally{}
		m.tallies[s.TeamID][s.Window] = t
	}
	t.add(s.Points, s.SolvedAt)
	return nil
}
