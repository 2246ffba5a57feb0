package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given the global logger", t, func() {
		ctx := context.Background()

		Convey("When it is not initialized", func() {
			mu.Lock()
			global = nil
			mu.Unlock()

			Convey("Then Get returns a usable discarding logger", func() {
				l := Get()
				So(l, ShouldNotBeNil)
				So(func() { l.Info(ctx, "dropped") }, ShouldNotPanic)
			})
		})

		Convey("When initialized with json output", func() {
			var buf bytes.Buffer
			So(Init(WithFormat("json"), WithWriter(&buf), WithLevel("debug")), ShouldBeNil)

			Named("ranking").Named("engine").Warn(ctx, "cache unavailable",
				String("key", "ctfboard_board_overall"), Int("entries", 3), Error(errors.New("boom")))

			var line map[string]any
			So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)

			Convey("Then the record carries name, fields and source", func() {
				So(line["msg"], ShouldEqual, "cache unavailable")
				So(line["level"], ShouldEqual, "WARN")
				So(line["logger"], ShouldEqual, "ctfboard.ranking.engine")
				So(line["key"], ShouldEqual, "ctfboard_board_overall")
				So(line["entries"], ShouldEqual, 3.0)
				So(line["error"], ShouldEqual, "boom")
				So(line["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised", func() {
			var buf bytes.Buffer
			So(Init(WithWriter(&buf), WithLevel("error")), ShouldBeNil)
			Get().Info(ctx, "hidden")
			So(buf.Len(), ShouldEqual, 0)
			Get().Error(ctx, "shown")
			So(buf.String(), ShouldContainSubstring, "shown")
		})

		Convey("When given bad options", func() {
			So(Init(WithFormat("xml")), ShouldNotBeNil)
			So(SetLevelString("loud"), ShouldNotBeNil)
		})

		Reset(func() {
			_ = Init(WithWriter(&bytes.Buffer{}))
		})
	})
}
