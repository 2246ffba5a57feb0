package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/okian/ctfboard/internal/adapters/export"
	"github.com/urfave/cli/v2"
)

func newBoardCommand() *cli.Command {
	return &cli.Command{
		Name:      "board",
		Usage:     "compute one board and print it",
		ArgsUsage: "[codename]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top", Usage: "print at most this many entries; 0 prints all"},
			&cli.StringFlag{Name: "xlsx", Usage: "also write the board to this spreadsheet file"},
		},
		Action: printBoard,
	}
}

func printBoard(c *cli.Context) error {
	ctx := c.Context
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	boards, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	engine, err := buildEngine(cfg, store, boards)
	if err != nil {
		return err
	}
	svc := newService(cfg, engine, store)

	codename := c.Args().First()
	if codename == "" {
		if codename, err = svc.DefaultCodename(ctx); err != nil {
			return err
		}
	}
	view, err := svc.Present(ctx, codename)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s (%s)\n", view.Codename, view.Template)
	fmt.Fprintln(tw, "RANK\tTEAM\tSCORE")
	top := c.Int("top")
	if top == 0 {
		top = -1
	}
	for _, e := range view.Board.Top(top) {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", e.Rank, e.Team.Name, e.Score)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if path := c.String("xlsx"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := export.WriteBoardXLSX(f, codename, view.Board); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}
