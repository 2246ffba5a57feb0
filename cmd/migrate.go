package main

import (
	"fmt"

	"github.com/okian/ctfboard/internal/adapters/repository"
	"github.com/okian/ctfboard/internal/adapters/repository/migrations"
	"github.com/okian/ctfboard/internal/config"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// withMigrator opens postgres and runs fn with the board migrator.
func withMigrator(c *cli.Context, fn func(m *migrate.Migrator) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return errNeedsPostgres
	}
	db := repository.Open(cfg.PostgresDSN)
	defer db.Close()
	return fn(migrate.NewMigrator(db, migrations.Migrations))
}

func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *migrate.Migrator) error {
						return m.Init(c.Context)
					})
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *migrate.Migrator) error {
						if err := m.Lock(c.Context); err != nil {
							return err
						}
						defer m.Unlock(c.Context) //nolint:errcheck

						group, err := m.Migrate(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Fprintln(c.App.Writer, "No new migrations to run")
						} else {
							fmt.Fprintf(c.App.Writer, "Migrated to %s\n", group)
						}
						return nil
					})
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *migrate.Migrator) error {
						if err := m.Lock(c.Context); err != nil {
							return err
						}
						defer m.Unlock(c.Context) //nolint:errcheck

						group, err := m.Rollback(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Fprintln(c.App.Writer, "No groups to roll back")
						} else {
							fmt.Fprintf(c.App.Writer, "Rolled back %s\n", group)
						}
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *migrate.Migrator) error {
						ms, err := m.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "Migrations: %s\n", ms)
						fmt.Fprintf(c.App.Writer, "Applied: %s\n", ms.Applied())
						fmt.Fprintf(c.App.Writer, "Unapplied: %s\n", ms.Unapplied())
						return nil
					})
				},
			},
		},
	}
}
