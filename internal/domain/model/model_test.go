package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	model "github.com/okian/ctfboard/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestWindow(t *testing.T) {
	convey.Convey("Given a window", t, func() {
		start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
		w := model.Window{Codename: "bartik", Start: start, End: start.Add(time.Hour)}

		convey.Convey("Then it is not started before its start", func() {
			now := start.Add(-time.Second)
			convey.So(w.Started(now), convey.ShouldBeFalse)
			convey.So(w.Active(now), convey.ShouldBeFalse)
			convey.So(w.Ended(now), convey.ShouldBeFalse)
		})

		convey.Convey("Then it is active inside its bounds", func() {
			convey.So(w.Active(start), convey.ShouldBeTrue)
			convey.So(w.Active(start.Add(30*time.Minute)), convey.ShouldBeTrue)
		})

		convey.Convey("Then it is ended exactly at its end time", func() {
			convey.So(w.Ended(start.Add(time.Hour)), convey.ShouldBeTrue)
			convey.So(w.Active(start.Add(time.Hour)), convey.ShouldBeFalse)
		})
	})
}

func TestStanding(t *testing.T) {
	convey.Convey("Given standings", t, func() {
		convey.Convey("When parsing known names", func() {
			for _, s := range []model.Standing{model.StandingGood, model.StandingIneligible, model.StandingInvisible} {
				parsed, err := model.ParseStanding(s.String())
				convey.So(err, convey.ShouldBeNil)
				convey.So(parsed, convey.ShouldEqual, s)
			}
		})

		convey.Convey("When parsing an unknown name", func() {
			_, err := model.ParseStanding("banned")
			convey.So(errors.Is(err, model.ErrInvalid), convey.ShouldBeTrue)
		})

		convey.Convey("Then only invisible teams are hidden", func() {
			convey.So(model.Team{Standing: model.StandingGood}.Visible(), convey.ShouldBeTrue)
			convey.So(model.Team{Standing: model.StandingIneligible}.Visible(), convey.ShouldBeTrue)
			convey.So(model.Team{Standing: model.StandingInvisible}.Visible(), convey.ShouldBeFalse)
		})
	})
}

func TestBoard(t *testing.T) {
	convey.Convey("Given a board", t, func() {
		a := model.Team{ID: uuid.New(), Name: "phsst"}
		b := model.Team{ID: uuid.New(), Name: "b1c"}
		board := model.Board{{Rank: 1, Team: a, Score: 30}, {Rank: 2, Team: b, Score: 20}}

		convey.Convey("When finding by id and name", func() {
			e, ok := board.Find(b.ID)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(e.Rank, convey.ShouldEqual, 2)

			e, ok = board.FindByName("phsst")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(e.Score, convey.ShouldEqual, 30)

			_, ok = board.FindByName("nobody")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When taking the top entries", func() {
			convey.So(board.Top(1), convey.ShouldHaveLength, 1)
			convey.So(board.Top(5), convey.ShouldHaveLength, 2)
			convey.So(board.Top(-1), convey.ShouldHaveLength, 2)
		})
	})
}
