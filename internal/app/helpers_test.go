package service_test

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/adapters/cache"
	"github.com/okian/ctfboard/internal/adapters/repository"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
	"github.com/okian/ctfboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store  *repository.Memory
	engine *ranking.Engine
	teams  map[string]model.Team
	now    time.Time
}

func (f *fixture) clock() time.Time { return f.now }

// newFixture builds three windows of a day each starting at t0, with the
// clock inside the third.
func newFixture() *fixture {
	ctx := context.Background()
	f := &fixture{now: t0.Add(50 * time.Hour), teams: make(map[string]model.Team)}
	f.store = repository.NewMemory(repository.WithClock(f.clock))

	for i, codename := range []string{"bartik", "boole", "church"} {
		start := t0.Add(time.Duration(i) * 24 * time.Hour)
		So(f.store.CreateWindow(ctx, model.Window{Codename: codename, Name: codename, Start: start, End: start.Add(24 * time.Hour)}), ShouldBeNil)
	}
	for _, name := range []string{"REEEEEEEEEEEEEEEEEEEEEEEEEEEEE", "MemeDream", "b1c"} {
		team := model.Team{ID: uuid.New(), Name: name}
		So(f.store.CreateTeam(ctx, team), ShouldBeNil)
		f.teams[name] = team
	}
	staff := model.Team{ID: uuid.New(), Name: "staff", Standing: model.StandingInvisible}
	So(f.store.CreateTeam(ctx, staff), ShouldBeNil)
	f.teams["staff"] = staff

	solve := func(team, window, problem string, points int, at time.Duration) {
		So(f.store.RecordSolve(ctx, model.Solve{
			TeamID: f.teams[team].ID, Window: window, Problem: problem, Points: points, SolvedAt: t0.Add(at),
		}), ShouldBeNil)
	}
	solve("REEEEEEEEEEEEEEEEEEEEEEEEEEEEE", "bartik", "p1", 100, 2*time.Hour)
	solve("MemeDream", "bartik", "p1", 100, time.Hour)
	solve("b1c", "bartik", "p2", 40, 3*time.Hour)
	solve("staff", "bartik", "p1", 999, 0)

	tb, err := ranking.NewTiebreaker(map[string]int{
		"REEEEEEEEEEEEEEEEEEEEEEEEEEEEE": 861,
		"MemeDream":                      394,
	}, 4000)
	So(err, ShouldBeNil)

	f.engine, err = ranking.New(f.store, f.store,
		ranking.WithTiebreaker(tb),
		ranking.WithCache(cache.NewBoards(cache.NewMemory(cache.WithMemoryClock(f.clock)))),
	)
	So(err, ShouldBeNil)
	return f
}
