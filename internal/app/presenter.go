package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
)

// Templates a view may name.
const (
	TemplateOverall    = "board/overall"
	TemplateTiebreaker = "board/tiebreaker"
	TemplateEnded      = "board/ended"
)

// BoardSource computes boards by codename.
type BoardSource interface {
	Board(ctx context.Context, codename string) (model.Board, error)
	Keys() ranking.Keys
	Normalization() int
}

// View is everything needed to render one board page.
type View struct {
	Template           string        `json:"template"`
	Codename           string        `json:"codename"`
	Window             *model.Window `json:"window,omitempty"`
	Board              model.Board   `json:"board"`
	OverallCodename    string        `json:"overall_codename"`
	TiebreakerCodename string        `json:"tiebreaker_codename"`
	IsTiebreaker       bool          `json:"is_tiebreaker"`
	CurrentWindow      *model.Window `json:"current_window,omitempty"`
	ScoreNormalization int           `json:"score_normalization,omitempty"`
}

// Presenter turns a requested codename into a View.
type Presenter struct {
	boards  BoardSource
	windows ranking.WindowRegistry
	now     func() time.Time
}

// NewPresenter creates a presenter reading boards from boards and windows
// from windows.
func NewPresenter(boards BoardSource, windows ranking.WindowRegistry, now func() time.Time) *Presenter {
	if now == nil {
		now = time.Now
	}
	return &Presenter{boards: boards, windows: windows, now: now}
}

// Present builds the view for codename. Unknown codenames yield an error
// wrapping model.ErrNotFound; a real window that has not ended yields
// ErrWindowNotEnded.
func (p *Presenter) Present(ctx context.Context, codename string) (View, error) {
	keys := p.boards.Keys()
	v := View{
		Codename:           codename,
		OverallCodename:    keys.Overall,
		TiebreakerCodename: keys.Tiebreaker,
		IsTiebreaker:       codename == keys.Tiebreaker,
	}

	switch codename {
	case keys.Overall:
		v.Template = TemplateOverall
		v.ScoreNormalization = p.boards.Normalization()
		current, err := p.windows.CurrentWindow(ctx)
		switch {
		case err == nil:
			v.CurrentWindow = &current
		case !errors.Is(err, model.ErrNotFound):
			return View{}, fmt.Errorf("service.Present: current window: %w", err)
		}
	case keys.Tiebreaker:
		v.Template = TemplateTiebreaker
	default:
		w, err := p.windows.Window(ctx, codename)
		if err != nil {
			return View{}, fmt.Errorf("service.Present %q: %w", codename, err)
		}
		if !w.Ended(p.now()) {
			return View{}, fmt.Errorf("service.Present %q: %w", codename, ErrWindowNotEnded)
		}
		v.Template = TemplateEnded
		v.Window = &w
	}

	board, err := p.boards.Board(ctx, codename)
	if err != nil {
		return View{}, fmt.Errorf("service.Present %q: %w", codename, err)
	}
	if board == nil {
		board = model.Board{}
	}
	v.Board = board
	return v, nil
}

// DefaultCodename picks the board shown when none is requested: the current
// window once it has ended, otherwise the overall board.
func (p *Presenter) DefaultCodename(ctx context.Context) (string, error) {
	overall := p.boards.Keys().Overall
	w, err := p.windows.CurrentWindow(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return overall, nil
	}
	if err != nil {
		return "", fmt.Errorf("service.DefaultCodename: %w", err)
	}
	if w.Ended(p.now()) {
		return w.Codename, nil
	}
	return overall, nil
}
