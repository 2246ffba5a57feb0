package main

import (
	"fmt"

	"github.com/okian/ctfboard/internal/adapters/repository"
	"github.com/okian/ctfboard/internal/config"
	"github.com/urfave/cli/v2"
)

func newSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "write generated teams, windows and solves to postgres",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "teams", Usage: "visible teams; overrides seed.teams"},
			&cli.IntFlag{Name: "invisible", Usage: "additional invisible teams"},
			&cli.IntFlag{Name: "windows", Usage: "windows; overrides seed.windows"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed; overrides seed.seed"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errNeedsPostgres
			}
			db := repository.Open(cfg.PostgresDSN)
			defer db.Close()

			opts := seedOptions(cfg)
			if c.IsSet("teams") {
				opts.Teams = c.Int("teams")
			}
			if c.IsSet("windows") {
				opts.Windows = c.Int("windows")
			}
			if c.IsSet("seed") {
				opts.Seed = c.Uint64("seed")
			}
			opts.InvisibleTeams = c.Int("invisible")

			res, err := repository.Seed(c.Context, repository.NewPostgres(db), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Seeded %d teams, %d windows, %d solves\n", len(res.Teams), len(res.Windows), res.Solves)
			return nil
		},
	}
}
