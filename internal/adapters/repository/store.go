// Package repository implements the score store and window registry the
// ranking engine reads from, in memory and on Postgres.
package repository

import (
	"context"
	"slices"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
)

// Writer records teams, windows and solves.
type Writer interface {
	CreateTeam(ctx context.Context, t model.Team) error
	CreateWindow(ctx context.Context, w model.Window) error
	RecordSolve(ctx context.Context, s model.Solve) error
}

// Store is everything a backend provides.
type Store interface {
	ranking.ScoreStore
	ranking.WindowRegistry
	Writer
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)

// currentWindow picks the window containing now, else the most recently
// started one, else the earliest upcoming one.
func currentWindow(windows []model.Window, now time.Time) (model.Window, bool) {
	if len(windows) == 0 {
		return model.Window{}, false
	}
	sorted := slices.Clone(windows)
	slices.SortFunc(sorted, func(a, b model.Window) int { return a.Start.Compare(b.Start) })

	var started *model.Window
	for i := range sorted {
		w := &sorted[i]
		if w.Active(now) {
			return *w, true
		}
		if w.Started(now) {
			started = w
		}
	}
	if started != nil {
		return *started, true
	}
	return sorted[0], true
}

func validateWindow(w model.Window) error {
	switch {
	case w.Codename == "":
		return errEmptyCodename
	case !w.End.After(w.Start):
		return errWindowBounds
	}
	return nil
}
