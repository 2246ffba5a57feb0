package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/internal/domain/ranking"
	"github.com/okian/ctfboard/pkg/metrics"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Open connects to Postgres at dsn.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Postgres reads and writes through bun.
type Postgres struct {
	db     bun.IDB
	now    func() time.Time
	tracer trace.Tracer
}

// NewPostgres wraps db, which may be a *bun.DB or a transaction.
func NewPostgres(db bun.IDB, opts ...Option) *Postgres {
	o := options{
		now:    time.Now,
		tracer: otel.Tracer("github.com/okian/ctfboard/internal/adapters/repository"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Postgres{db: db, now: o.now, tracer: o.tracer}
}

func (p *Postgres) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, "repository.Postgres."+op, trace.WithAttributes(attrs...))
	began := time.Now()
	return ctx, func(err error) {
		metrics.RecordRepositoryQueryLatency(op, float64(time.Since(began).Microseconds())/1000)
		if err != nil {
			span.RecordError(err)
			metrics.RecordErrorByComponent("repository", op)
		}
		span.End()
	}
}

// Teams returns teams ordered by name.
func (p *Postgres) Teams(ctx context.Context, excludeInvisible bool) (teams []model.Team, err error) {
	ctx, done := p.start(ctx, "Teams", attribute.Bool("exclude_invisible", excludeInvisible))
	defer func() { done(err) }()

	var rows []TeamRecord
	q := p.db.NewSelect().Model(&rows).OrderExpr("t.name ASC")
	if excludeInvisible {
		q = q.Where("t.standing <> ?", model.StandingInvisible)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("repository.Postgres.Teams: %w", err)
	}

	teams = make([]model.Team, len(rows))
	for i, r := range rows {
		teams[i] = r.toModel()
	}
	return teams, nil
}

// Score sums the team's solves in w. Unknown teams are not found.
func (p *Postgres) Score(ctx context.Context, team model.Team, w model.Window) (score model.Score, err error) {
	ctx, done := p.start(ctx, "Score", attribute.String("window", w.Codename))
	defer func() { done(err) }()

	var row scoreRow
	err = p.db.NewSelect().
		TableExpr("teams AS t").
		ColumnExpr("COALESCE(SUM(s.points), 0) AS points").
		ColumnExpr("MAX(s.solved_at) AS last_solved_at").
		Join("LEFT JOIN solves AS s ON s.team_id = t.id AND s.window_codename = ?", w.Codename).
		Where("t.id = ?", team.ID).
		GroupExpr("t.id").
		Scan(ctx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Score{}, fmt.Errorf("repository.Postgres.Score %s: %w", team.Name, ErrTeamNotFound)
	}
	if err != nil {
		return model.Score{}, fmt.Errorf("repository.Postgres.Score %s: %w", team.Name, err)
	}
	return model.Score{Points: row.Points, AchievedAt: row.LastSolvedAt.Time}, nil
}

// OverallBoard ranks visible teams by points across all windows, ties
// going to the team whose last solve came first.
func (p *Postgres) OverallBoard(ctx context.Context) (board model.Board, err error) {
	ctx, done := p.start(ctx, "OverallBoard")
	defer func() { done(err) }()

	var rows []overallRow
	err = p.db.NewSelect().
		TableExpr("teams AS t").
		ColumnExpr("t.id, t.name, t.standing").
		ColumnExpr("COALESCE(SUM(s.points), 0) AS points").
		ColumnExpr("MAX(s.solved_at) AS last_solved_at").
		Join("LEFT JOIN solves AS s ON s.team_id = t.id").
		Where("t.standing <> ?", model.StandingInvisible).
		GroupExpr("t.id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("repository.Postgres.OverallBoard: %w", err)
	}

	scores := make([]model.TeamScore, len(rows))
	for i, r := range rows {
		scores[i] = model.TeamScore{
			Team:       model.Team{ID: r.ID, Name: r.Name, Standing: r.Standing},
			Score:      r.Points,
			AchievedAt: r.LastSolvedAt.Time,
		}
	}
	return ranking.Rank(scores, nil, ranking.ByAchievedAt)
}

// Window returns the window named codename.
func (p *Postgres) Window(ctx context.Context, codename string) (w model.Window, err error) {
	ctx, done := p.start(ctx, "Window", attribute.String("window", codename))
	defer func() { done(err) }()

	var row WindowRecord
	err = p.db.NewSelect().Model(&row).Where("w.codename = ?", codename).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Window{}, fmt.Errorf("repository.Postgres.Window %q: %w", codename, ErrWindowNotFound)
	}
	if err != nil {
		return model.Window{}, fmt.Errorf("repository.Postgres.Window %q: %w", codename, err)
	}
	return row.toModel(), nil
}

// Windows returns all windows ordered by start.
func (p *Postgres) Windows(ctx context.Context) (windows []model.Window, err error) {
	ctx, done := p.start(ctx, "Windows")
	defer func() { done(err) }()

	var rows []WindowRecord
	if err := p.db.NewSelect().Model(&rows).OrderExpr("w.starts_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("repository.Postgres.Windows: %w", err)
	}
	windows = make([]model.Window, len(rows))
	for i, r := range rows {
		windows[i] = r.toModel()
	}
	return windows, nil
}

// CurrentWindow returns the window the competition is in at this moment.
func (p *Postgres) CurrentWindow(ctx context.Context) (model.Window, error) {
	windows, err := p.Windows(ctx)
	if err != nil {
		return model.Window{}, err
	}
	w, ok := currentWindow(windows, p.now())
	if !ok {
		return model.Window{}, fmt.Errorf("repository.Postgres.CurrentWindow: %w", ErrWindowNotFound)
	}
	return w, nil
}

// CreateTeam inserts a team.
func (p *Postgres) CreateTeam(ctx context.Context, t model.Team) (err error) {
	ctx, done := p.start(ctx, "CreateTeam")
	defer func() { done(err) }()

	row := &TeamRecord{ID: t.ID, Name: t.Name, Standing: t.Standing}
	if _, err := p.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("repository.Postgres.CreateTeam %q: %w", t.Name, mapInsertError(err))
	}
	return nil
}

// CreateWindow inserts a window.
func (p *Postgres) CreateWindow(ctx context.Context, w model.Window) (err error) {
	if err := validateWindow(w); err != nil {
		return fmt.Errorf("repository.Postgres.CreateWindow: %w", err)
	}
	ctx, done := p.start(ctx, "CreateWindow")
	defer func() { done(err) }()

	row := &WindowRecord{Codename: w.Codename, Name: w.Name, StartsAt: w.Start, EndsAt: w.End}
	if _, err := p.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("repository.Postgres.CreateWindow %q: %w", w.Codename, mapInsertError(err))
	}
	return nil
}

// RecordSolve inserts a solve. A problem counts once per team.
func (p *Postgres) RecordSolve(ctx context.Context, s model.Solve) (err error) {
	if s.Points < 0 {
		return fmt.Errorf("repository.Postgres.RecordSolve: %w", errNegativeScore)
	}
	ctx, done := p.start(ctx, "RecordSolve", attribute.String("window", s.Window))
	defer func() { done(err) }()

	row := &SolveRecord{
		TeamID:         s.TeamID,
		WindowCodename: s.Window,
		Problem:        s.Problem,
		Points:         s.Points,
		SolvedAt:       s.SolvedAt,
	}
	res, err := p.db.NewInsert().Model(row).
		On("CONFLICT (team_id, window_codename, problem) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("repository.Postgres.RecordSolve: %w", mapInsertError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("repository.Postgres.RecordSolve %s/%s: %w", s.Window, s.Problem, ErrDuplicate)
	}
	return nil
}

// mapInsertError turns constraint violations into ErrDuplicate.
func mapInsertError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		switch pgErr.Field('C') {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Field('M'))
		case "23503":
			return fmt.Errorf("%w: %s", model.ErrNotFound, pgErr.Field('M'))
		}
	}
	return err
}
