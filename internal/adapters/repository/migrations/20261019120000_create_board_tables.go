package migrations

import (
	"context"

	"github.com/okian/ctfboard/internal/adapters/repository"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*repository.TeamRecord)(nil),
			(*repository.WindowRecord)(nil),
			(*repository.SolveRecord)(nil),
		}
		for _, m := range models {
			if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		stmts := []string{
			`ALTER TABLE solves ADD CONSTRAINT solves_team_fk FOREIGN KEY (team_id) REFERENCES teams (id) ON DELETE CASCADE`,
			`ALTER TABLE solves ADD CONSTRAINT solves_window_fk FOREIGN KEY (window_codename) REFERENCES windows (codename) ON DELETE CASCADE`,
			`CREATE INDEX IF NOT EXISTS idx_solves_window ON solves (window_codename)`,
			`CREATE INDEX IF NOT EXISTS idx_teams_standing ON teams (standing)`,
		}
		for _, s := range stmts {
			if _, err := db.NewRaw(s).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*repository.SolveRecord)(nil),
			(*repository.WindowRecord)(nil),
			(*repository.TeamRecord)(nil),
		}
		for _, m := range models {
			if _, err := db.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
