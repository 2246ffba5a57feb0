package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/ctfboard/internal/app"
	"github.com/okian/ctfboard/internal/adapters/repository"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPresenter(t *testing.T) {
	ctx := context.Background()

	Convey("Given a presenter over three windows, the last still running", t, func() {
		f := newFixture()
		p := service.NewPresenter(f.engine, f.store, f.clock)

		Convey("When presenting the overall board", func() {
			v, err := p.Present(ctx, "overall")
			So(err, ShouldBeNil)

			Convey("Then it blends the tiebreaker and carries the current window", func() {
				So(v.Template, ShouldEqual, service.TemplateOverall)
				So(v.IsTiebreaker, ShouldBeFalse)
				So(v.ScoreNormalization, ShouldEqual, 1000)
				So(v.CurrentWindow, ShouldNotBeNil)
				So(v.CurrentWindow.Codename, ShouldEqual, "church")
				So(v.Window, ShouldBeNil)

				So(v.Board, ShouldHaveLength, 3)
				So(v.Board[0].Team.Name, ShouldEqual, "REEEEEEEEEEEEEEEEEEEEEEEEEEEEE")
				So(v.Board[0].Score, ShouldEqual, 315)
				So(v.Board[1].Team.Name, ShouldEqual, "MemeDream")
				So(v.Board[1].Score, ShouldEqual, 198)
				So(v.Board[2].Score, ShouldEqual, 40)
			})
		})

		Convey("When presenting the tiebreaker board", func() {
			v, err := p.Present(ctx, "tiebreaker")
			So(err, ShouldBeNil)

			Convey("Then only table teams appear, ordered by their table score", func() {
				So(v.Template, ShouldEqual, service.TemplateTiebreaker)
				So(v.IsTiebreaker, ShouldBeTrue)
				So(v.Board, ShouldHaveLength, 2)
				So(v.Board[0].Score, ShouldEqual, 861)
			})
		})

		Convey("When presenting an ended window", func() {
			v, err := p.Present(ctx, "bartik")
			So(err, ShouldBeNil)

			Convey("Then the earlier solver wins the tie", func() {
				So(v.Template, ShouldEqual, service.TemplateEnded)
				So(v.Window.Codename, ShouldEqual, "bartik")
				So(v.Board[0].Team.Name, ShouldEqual, "MemeDream")
				So(v.Board[1].Team.Name, ShouldEqual, "REEEEEEEEEEEEEEEEEEEEEEEEEEEEE")
			})
		})

		Convey("When presenting an ended window nobody scored in", func() {
			v, err := p.Present(ctx, "boole")
			So(err, ShouldBeNil)
			So(v.Board, ShouldHaveLength, 3)
			for _, e := range v.Board {
				So(e.Score, ShouldEqual, 0)
			}
		})

		Convey("When presenting a window that is still running", func() {
			_, err := p.Present(ctx, "church")
			So(errors.Is(err, service.ErrWindowNotEnded), ShouldBeTrue)
		})

		Convey("When presenting an unknown codename", func() {
			_, err := p.Present(ctx, "nonexistent-window")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When choosing the default board", func() {
			Convey("Then it is overall while the current window runs", func() {
				c, err := p.DefaultCodename(ctx)
				So(err, ShouldBeNil)
				So(c, ShouldEqual, "overall")
			})

			Convey("Then it is the last window once the competition is over", func() {
				f.now = t0.Add(100 * time.Hour)
				c, err := p.DefaultCodename(ctx)
				So(err, ShouldBeNil)
				So(c, ShouldEqual, "church")
			})
		})
	})

	Convey("Given no windows at all", t, func() {
		store := repository.NewMemory()
		engine, err := ranking.New(store, store)
		So(err, ShouldBeNil)
		p := service.NewPresenter(engine, store, nil)

		c, err := p.DefaultCodename(ctx)
		So(err, ShouldBeNil)
		So(c, ShouldEqual, "overall")

		v, err := p.Present(ctx, "overall")
		So(err, ShouldBeNil)
		So(v.CurrentWindow, ShouldBeNil)
		So(v.Board, ShouldNotBeNil)
		So(v.Board, ShouldBeEmpty)
	})
}
