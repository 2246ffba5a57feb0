package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/uptrace/bun"
)

// TeamRecord is a row of the teams table.
type TeamRecord struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	ID        uuid.UUID      `bun:"id,pk,type:uuid"`
	Name      string         `bun:"name,notnull,unique"`
	Standing  model.Standing `bun:"standing,notnull,default:0"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r TeamRecord) toModel() model.Team {
	return model.Team{ID: r.ID, Name: r.Name, Standing: r.Standing}
}

// WindowRecord is a row of the windows table.
type WindowRecord struct {
	bun.BaseModel `bun:"table:windows,alias:w"`

	Codename string    `bun:"codename,pk"`
	Name     string    `bun:"name,notnull"`
	StartsAt time.Time `bun:"starts_at,notnull"`
	EndsAt   time.Time `bun:"ends_at,notnull"`
}

func (r WindowRecord) toModel() model.Window {
	return model.Window{Codename: r.Codename, Name: r.Name, Start: r.StartsAt, End: r.EndsAt}
}

// SolveRecord is a row of the solves table.
type SolveRecord struct {
	bun.BaseModel `bun:"table:solves,alias:s"`

	ID             int64     `bun:"id,pk,autoincrement"`
	TeamID         uuid.UUID `bun:"team_id,type:uuid,notnull,unique:solves_team_window_problem"`
	WindowCodename string    `bun:"window_codename,notnull,unique:solves_team_window_problem"`
	Problem        string    `bun:"problem,notnull,unique:solves_team_window_problem"`
	Points         int       `bun:"points,notnull"`
	SolvedAt       time.Time `bun:"solved_at,notnull"`
}

// scoreRow is the aggregate of one team's solves.
type scoreRow struct {
	Points       int          `bun:"points"`
	LastSolvedAt bun.NullTime `bun:"last_solved_at"`
}

// overallRow is one team with its aggregate across all windows.
type overallRow struct {
	ID           uuid.UUID      `bun:"id"`
	Name         string         `bun:"name"`
	Standing     model.Standing `bun:"standing"`
	Points       int            `bun:"points"`
	LastSolvedAt bun.NullTime   `bun:"last_solved_at"`
}
