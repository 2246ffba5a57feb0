package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
)

// WindowWinners lists a window's prize-winning teams by name or ID.
type WindowWinners struct {
	Window string
	Teams  []string
}

// WinnersConfig is the published winners list.
type WinnersConfig struct {
	TopOverallCount int
	TopWindowCount  int
	Overall         []string
	Windows         []WindowWinners
}

// WindowWinnersView is one window's resolved winners.
type WindowWinnersView struct {
	Window model.Window `json:"window"`
	Teams  []model.Team `json:"teams"`
}

// WinnersView is the resolved winners page.
type WinnersView struct {
	TopOverallCount int                 `json:"top_overall_count"`
	TopWindowCount  int                 `json:"top_window_count"`
	Overall         []model.Team        `json:"overall"`
	Windows         []WindowWinnersView `json:"windows"`
	AllWindows      []model.Window      `json:"all_windows"`
}

// Winners resolves the configured winners against the store. Names that
// match no team and windows that do not exist are skipped and logged.
func (s *Service) Winners(ctx context.Context) (WinnersView, error) {
	teams, err := s.store.Teams(ctx, false)
	if err != nil {
		return WinnersView{}, fmt.Errorf("service.Winners: %w", err)
	}
	byName := make(map[string]model.Team, len(teams))
	byID := make(map[uuid.UUID]model.Team, len(teams))
	for _, t := range teams {
		byName[t.Name] = t
		byID[t.ID] = t
	}
	resolve := func(refs []string) []model.Team {
		out := make([]model.Team, 0, len(refs))
		for _, ref := range refs {
			if t, ok := byName[ref]; ok {
				out = append(out, t)
				continue
			}
			if id, err := uuid.Parse(ref); err == nil {
				if t, ok := byID[id]; ok {
					out = append(out, t)
					continue
				}
			}
			s.logger.Warn(ctx, "unknown winner skipped", logger.String("team", ref))
		}
		return out
	}

	all, err := s.store.Windows(ctx)
	if err != nil {
		return WinnersView{}, fmt.Errorf("service.Winners: %w", err)
	}

	view := WinnersView{
		TopOverallCount: s.winners.TopOverallCount,
		TopWindowCount:  s.winners.TopWindowCount,
		Overall:         resolve(s.winners.Overall),
		Windows:         make([]WindowWinnersView, 0, len(s.winners.Windows)),
		AllWindows:      all,
	}
	for _, ww := range s.winners.Windows {
		w, err := s.store.Window(ctx, ww.Window)
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Warn(ctx, "unknown winners window skipped", logger.String("window", ww.Window))
			continue
		}
		if err != nil {
			return WinnersView{}, fmt.Errorf("service.Winners: %w", err)
		}
		view.Windows = append(view.Windows, WindowWinnersView{Window: w, Teams: resolve(ww.Teams)})
	}
	return view, nil
}
