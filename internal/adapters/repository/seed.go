package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/domain/model"
)

// seedNamespace derives stable team IDs from generated names.
var seedNamespace = uuid.MustParse("6f1c1f9e-7a57-4b0c-9f35-2c4f0b8a1d01")

var windowCodenames = []string{"bartik", "boole", "church", "dijkstra", "hopper", "knuth", "lovelace", "turing"}

// SeedOptions controls generated demo data.
type SeedOptions struct {
	Names             []string // used for the first visible teams, in order
	Teams             int
	InvisibleTeams    int
	Windows           int
	ProblemsPerWindow int
	SolveRate         float64 // chance a team solves a given problem
	Start             time.Time
	WindowLength      time.Duration
	Seed              uint64
}

// SeedResult describes what was written.
type SeedResult struct {
	Teams   []model.Team
	Windows []model.Window
	Solves  int
}

// Seed writes fake teams, windows and solves. The same Seed produces the
// same data.
func Seed(ctx context.Context, w Writer, opts SeedOptions) (SeedResult, error) {
	if opts.Windows > len(windowCodenames) {
		return SeedResult{}, fmt.Errorf("repository.Seed: at most %d windows: %w", len(windowCodenames), model.ErrInvalid)
	}
	if opts.WindowLength <= 0 {
		opts.WindowLength = 24 * time.Hour
	}
	if opts.ProblemsPerWindow <= 0 {
		opts.ProblemsPerWindow = 10
	}
	if opts.SolveRate <= 0 {
		opts.SolveRate = 0.5
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().Add(-time.Duration(opts.Windows) * opts.WindowLength).Truncate(time.Hour)
	}

	faker := gofakeit.New(opts.Seed)
	var res SeedResult

	for i := 0; i < opts.Windows; i++ {
		codename := windowCodenames[i]
		start := opts.Start.Add(time.Duration(i) * opts.WindowLength)
		win := model.Window{
			Codename: codename,
			Name:     "Round " + strings.ToUpper(codename[:1]) + codename[1:],
			Start:    start,
			End:      start.Add(opts.WindowLength),
		}
		if err := w.CreateWindow(ctx, win); err != nil {
			return res, fmt.Errorf("repository.Seed: %w", err)
		}
		res.Windows = append(res.Windows, win)
	}

	used := make(map[string]bool)
	for i := 0; i < opts.Teams+opts.InvisibleTeams; i++ {
		var name string
		if i < len(opts.Names) && i < opts.Teams {
			name = opts.Names[i]
		} else {
			name = faker.HackerAdjective() + " " + faker.HackerNoun()
		}
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s %s %d", faker.HackerAdjective(), faker.HackerNoun(), n)
		}
		used[name] = true

		team := model.Team{ID: uuid.NewSHA1(seedNamespace, []byte(name)), Name: name}
		if i >= opts.Teams {
			team.Standing = model.StandingInvisible
		}
		if err := w.CreateTeam(ctx, team); err != nil {
			return res, fmt.Errorf("repository.Seed: %w", err)
		}
		res.Teams = append(res.Teams, team)
	}

	seconds := int(opts.WindowLength / time.Second)
	for _, win := range res.Windows {
		for p := 1; p <= opts.ProblemsPerWindow; p++ {
			points := faker.Number(1, 10) * 10
			for _, team := range res.Teams {
				if faker.Float64Range(0, 1) >= opts.SolveRate {
					continue
				}
				solve := model.Solve{
					TeamID:   team.ID,
					Window:   win.Codename,
					Problem:  fmt.Sprintf("%s-%02d", win.Codename, p),
					Points:   points,
					SolvedAt: win.Start.Add(time.Duration(faker.Number(0, seconds-1)) * time.Second),
				}
				if err := w.RecordSolve(ctx, solve); err != nil {
					if errors.Is(err, model.ErrConflict) {
						continue
					}
					return res, fmt.Errorf("repository.Seed: %w", err)
				}
				res.Solves++
			}
		}
	}
	return res, nil
}
