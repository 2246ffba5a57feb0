package ranking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func newEngine(store *fakeStore, reg *fakeRegistry, opts ...ranking.Option) *ranking.Engine {
	e, err := ranking.New(store, reg, opts...)
	So(err, ShouldBeNil)
	return e
}

func TestEngineOverallBlend(t *testing.T) {
	Convey("Given two teams tied on the overall board", t, func() {
		store := newFakeStore()
		a := store.addTeam("REEEEEEEEEEEEEEEEEEEEEEEEEEEEE", model.StandingGood)
		b := store.addTeam("MemeDream", model.StandingGood)
		// b leads on the plain board by its external tie-break
		store.overall = model.Board{{Rank: 1, Team: b, Score: 100}, {Rank: 2, Team: a, Score: 100}}

		tb, err := ranking.NewTiebreaker(map[string]int{a.Name: 861, b.Name: 394}, 4000)
		So(err, ShouldBeNil)

		cache := newFakeCache()
		engine := newEngine(store, &fakeRegistry{}, ranking.WithTiebreaker(tb),
			ranking.WithNormalization(1000), ranking.WithCache(cache))

		Convey("When the overall board is requested", func() {
			board, err := engine.Board(context.Background(), "overall")
			So(err, ShouldBeNil)

			Convey("Then the tiebreaker bonus decides the order", func() {
				want := model.Board{
					{Rank: 1, Team: a, Score: 315},
					{Rank: 2, Team: b, Score: 198},
				}
				So(cmp.Diff(want, board), ShouldBeEmpty)
			})

			Convey("Then the plain and blended boards are cached under distinct keys", func() {
				So(cache.keys(), ShouldHaveLength, 2)
				plain, ok, _ := cache.Get(context.Background(), "ctfboard_board_overall")
				So(ok, ShouldBeTrue)
				So(plain[0].Score, ShouldEqual, 100)
				blended, ok, _ := cache.Get(context.Background(), "ctfboard_board_overalltiebreaker")
				So(ok, ShouldBeTrue)
				So(blended[0].Score, ShouldEqual, 315)
			})

			Convey("Then the plain overall board is unchanged", func() {
				plain, err := engine.OverallBoard(context.Background())
				So(err, ShouldBeNil)
				So(names(plain), ShouldResemble, []string{"MemeDream", "REEEEEEEEEEEEEEEEEEEEEEEEEEEEE"})
				So(store.overallCalls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When a team has no tiebreaker entry", func() {
			c := store.addTeam("GO GO MUSTANGS", model.StandingGood)
			store.overall = append(store.overall, model.Entry{Rank: 3, Team: c, Score: 500})

			board, err := engine.BlendedBoard(context.Background())
			So(err, ShouldBeNil)

			Convey("Then it keeps its score with a zero bonus", func() {
				e, ok := board.Find(c.ID)
				So(ok, ShouldBeTrue)
				So(e.Score, ShouldEqual, 500)
				So(e.Rank, ShouldEqual, 1)
			})
		})

		Convey("When bonuses cannot separate equal adjusted scores", func() {
			tb, err := ranking.NewTiebreaker(nil, 4000)
			So(err, ShouldBeNil)
			engine := newEngine(store, &fakeRegistry{}, ranking.WithTiebreaker(tb))

			board, err := engine.BlendedBoard(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the plain board order is kept", func() {
				So(names(board), ShouldResemble, []string{"MemeDream", "REEEEEEEEEEEEEEEEEEEEEEEEEEEEE"})
				assertWellFormed(board)
			})
		})
	})
}

func TestEngineTiebreakerBoard(t *testing.T) {
	Convey("Given teams partly present in the tiebreaker table", t, func() {
		store := newFakeStore()
		store.addTeam("phsst", model.StandingGood)
		store.addTeam("b1c", model.StandingGood)
		store.addTeam("absent", model.StandingGood)
		store.addTeam("staff", model.StandingInvisible)

		tb, err := ranking.NewTiebreaker(map[string]int{"phsst": 886, "b1c": 864, "staff": 4000}, 4000)
		So(err, ShouldBeNil)
		cache := newFakeCache()
		engine := newEngine(store, &fakeRegistry{}, ranking.WithTiebreaker(tb),
			ranking.WithCache(cache), ranking.WithTTL(5*time.Minute))

		Convey("When the tiebreaker board is requested twice", func() {
			first, err := engine.Board(context.Background(), "tiebreaker")
			So(err, ShouldBeNil)
			second, err := engine.TiebreakerBoard(context.Background())
			So(err, ShouldBeNil)

			Convey("Then only visible table teams appear, ranked by table score", func() {
				So(names(first), ShouldResemble, []string{"phsst", "b1c"})
				So(first[0].Score, ShouldEqual, 886)
				assertWellFormed(first)
			})

			Convey("Then the second call is served from the cache", func() {
				So(cmp.Diff(first, second), ShouldBeEmpty)
				So(store.teamCalls.Load(), ShouldEqual, 1)
				So(cache.ttls["ctfboard_board_tiebreaker"], ShouldEqual, 5*time.Minute)
			})
		})
	})
}

func TestEngineWindowBoard(t *testing.T) {
	Convey("Given a real window with scores", t, func() {
		start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		bartik := model.Window{Codename: "bartik", Start: start, End: start.Add(24 * time.Hour)}
		reg := &fakeRegistry{windows: map[string]model.Window{"bartik": bartik}}

		store := newFakeStore()
		a := store.addTeam("Flaming Tigers", model.StandingGood)
		b := store.addTeam("sos brigade", model.StandingGood)
		c := store.addTeam("AT-Fun", model.StandingIneligible)
		hidden := store.addTeam("staff", model.StandingInvisible)
		store.setScore(a, "bartik", 300, start.Add(3*time.Hour))
		store.setScore(b, "bartik", 300, start.Add(2*time.Hour))
		store.setScore(c, "bartik", 500, start.Add(time.Hour))
		store.setScore(hidden, "bartik", 9000, start)

		cache := newFakeCache()
		engine := newEngine(store, reg, ranking.WithCache(cache), ranking.WithFetchConcurrency(2))

		Convey("When the board is requested", func() {
			board, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)

			Convey("Then scores descend, ties go to the earlier solve and invisible teams are absent", func() {
				So(names(board), ShouldResemble, []string{"AT-Fun", "sos brigade", "Flaming Tigers"})
				assertWellFormed(board)
				_, ok := board.Find(hidden.ID)
				So(ok, ShouldBeFalse)
			})

			Convey("Then it is cached under the window codename", func() {
				_, ok, _ := cache.Get(context.Background(), "ctfboard_board_bartik")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the window tie key is replaced", func() {
			engine := newEngine(store, reg, ranking.WithWindowTieKey(func(w *model.Window, ts model.TeamScore) ranking.TieKey {
				return ranking.TieKey{ID: ts.Team.Name}
			}))
			board, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)
			So(names(board), ShouldResemble, []string{"AT-Fun", "Flaming Tigers", "sos brigade"})
		})

		Convey("When the codename is unknown", func() {
			_, err := engine.Board(context.Background(), "nonexistent-window")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When computing twice without a cache", func() {
			engine := newEngine(store, reg)
			first, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)
			second, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)
			So(cmp.Diff(first, second), ShouldBeEmpty)
			So(store.teamCalls.Load(), ShouldEqual, 2)
		})

		Convey("When refreshing after the scores change", func() {
			_, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)
			store.setScore(a, "bartik", 1000, start.Add(4*time.Hour))

			stale, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)
			So(stale[0].Team.Name, ShouldEqual, "AT-Fun")

			fresh, err := engine.Refresh(context.Background(), "bartik")
			So(err, ShouldBeNil)
			So(fresh[0].Team.Name, ShouldEqual, "Flaming Tigers")

			cached, err := engine.Board(context.Background(), "bartik")
			So(err, ShouldBeNil)
			So(cmp.Diff(fresh, cached), ShouldBeEmpty)
		})
	})
}

func TestEngineEmptyAndFailOpen(t *testing.T) {
	Convey("Given an engine without teams", t, func() {
		store := newFakeStore()
		cache := newFakeCache()
		engine := newEngine(store, &fakeRegistry{}, ranking.WithCache(cache))

		Convey("Then every pseudo board is empty, not an error", func() {
			for _, codename := range []string{"overall", "tiebreaker"} {
				board, err := engine.Board(context.Background(), codename)
				So(err, ShouldBeNil)
				So(board, ShouldBeEmpty)
			}
		})

		Convey("When the cache fails", func() {
			store.addTeam("b1c", model.StandingGood)
			tb, err := ranking.NewTiebreaker(map[string]int{"b1c": 1}, 10)
			So(err, ShouldBeNil)
			cache.getErr = errBroken
			cache.setErr = errBroken
			engine := newEngine(store, &fakeRegistry{}, ranking.WithCache(cache), ranking.WithTiebreaker(tb))

			Convey("Then boards are still computed on every request", func() {
				for range 2 {
					board, err := engine.TiebreakerBoard(context.Background())
					So(err, ShouldBeNil)
					So(board, ShouldHaveLength, 1)
				}
				So(store.teamCalls.Load(), ShouldEqual, 2)
			})
		})
	})
}

func TestEngineSingleflight(t *testing.T) {
	Convey("Given concurrent misses on the same board", t, func() {
		store := newFakeStore()
		store.addTeam("phsst", model.StandingGood)
		store.gate = make(chan struct{})
		engine := newEngine(store, &fakeRegistry{}, ranking.WithSingleflight(), ranking.WithCache(newFakeCache()))

		var wg sync.WaitGroup
		results := make([]model.Board, 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = engine.TiebreakerBoard(context.Background())
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(store.gate)
		wg.Wait()

		Convey("Then the board is computed once", func() {
			So(store.teamCalls.Load(), ShouldEqual, 1)
			for _, r := range results {
				So(cmp.Diff(results[0], r), ShouldBeEmpty)
			}
		})
	})
}

func TestEngineSingleflightCancel(t *testing.T) {
	Convey("Given a shared computation started by a caller that goes away", t, func() {
		store := newFakeStore()
		store.addTeam("phsst", model.StandingGood)
		store.gate = make(chan struct{})
		engine := newEngine(store, &fakeRegistry{}, ranking.WithSingleflight(), ranking.WithCache(newFakeCache()))

		ctx, cancel := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := engine.TiebreakerBoard(ctx)
			firstErr <- err
		}()
		time.Sleep(20 * time.Millisecond)

		type result struct {
			board model.Board
			err   error
		}
		second := make(chan result, 1)
		go func() {
			b, err := engine.TiebreakerBoard(context.Background())
			second <- result{b, err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		err := <-firstErr
		close(store.gate)
		got := <-second

		Convey("Then only the cancelled caller fails", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(got.err, ShouldBeNil)
			So(got.board, ShouldBeEmpty)
			So(store.teamCalls.Load(), ShouldEqual, 1)
		})
	})
}

func TestEngineReservedCodenames(t *testing.T) {
	Convey("Given windows whose codenames collide with the pseudo boards", t, func() {
		store := newFakeStore()
		a := store.addTeam("phsst", model.StandingGood)
		store.overall = model.Board{{Rank: 1, Team: a, Score: 10}}
		start := time.Date(2017, 4, 1, 0, 0, 0, 0, time.UTC)
		clash := model.Window{Codename: "overalltiebreaker", Start: start, End: start.Add(time.Hour)}
		reg := &fakeRegistry{windows: map[string]model.Window{clash.Codename: clash}}
		store.setScore(a, clash.Codename, 999, start)

		cache := newFakeCache()
		engine := newEngine(store, reg, ranking.WithCache(cache))

		Convey("When the window is requested by codename", func() {
			_, err := engine.Board(context.Background(), clash.Codename)

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, ranking.ErrReservedCodename), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalid), ShouldBeTrue)
				So(cache.keys(), ShouldBeEmpty)
			})
		})

		Convey("When the window is passed directly", func() {
			_, err := engine.WindowBoard(context.Background(), clash)
			So(errors.Is(err, ranking.ErrReservedCodename), ShouldBeTrue)

			Convey("Then the blended overall board is untouched", func() {
				board, err := engine.Board(context.Background(), "overall")
				So(err, ShouldBeNil)
				So(board, ShouldHaveLength, 1)
				So(board[0].Score, ShouldEqual, 10)
			})
		})

		Convey("Then the pseudo codenames themselves are reserved", func() {
			keys := engine.Keys()
			So(keys.Reserved("overall"), ShouldBeTrue)
			So(keys.Reserved("tiebreaker"), ShouldBeTrue)
			So(keys.Reserved("overalltiebreaker"), ShouldBeTrue)
			So(keys.Reserved("boole"), ShouldBeFalse)
		})
	})
}

func TestEngineConfig(t *testing.T) {
	Convey("Given invalid engine settings", t, func() {
		store, reg := newFakeStore(), &fakeRegistry{}

		_, err := ranking.New(nil, reg)
		So(errors.Is(err, ranking.ErrInvalidConfig), ShouldBeTrue)

		_, err = ranking.New(store, reg, ranking.WithKeys(ranking.Keys{Prefix: "p", Overall: "x", Tiebreaker: "x"}))
		So(errors.Is(err, ranking.ErrInvalidConfig), ShouldBeTrue)

		_, err = ranking.New(store, reg, ranking.WithTTL(0))
		So(errors.Is(err, ranking.ErrInvalidConfig), ShouldBeTrue)

		_, err = ranking.New(store, reg, ranking.WithNormalization(-1))
		So(errors.Is(err, ranking.ErrInvalidConfig), ShouldBeTrue)
	})

	Convey("Given custom keys", t, func() {
		k := ranking.Keys{Prefix: "ctflex_board_", Overall: "all", Tiebreaker: "tb"}
		So(k.Board("bartik"), ShouldEqual, "ctflex_board_bartik")
		So(k.Board("all"), ShouldEqual, "ctflex_board_all")
		So(k.Blended(), ShouldEqual, "ctflex_board_alltb")
		So(k.Blended(), ShouldNotEqual, k.Board(k.Overall))
		So(k.IsPseudo("tb"), ShouldBeTrue)
		So(k.IsPseudo("bartik"), ShouldBeFalse)
	})
}
