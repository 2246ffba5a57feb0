package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/ctfboard/internal/boardcheck"
	"github.com/okian/ctfboard/pkg/logger"
	"github.com/urfave/cli/v2"
)

// Default configuration constants.
const (
	defaultTopN       = 10
	defaultRefreshes  = 32
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "boardcheck",
		Usage: "verify the boards a running ctfboard server serves",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.IntFlag{Name: "top", Value: defaultTopN, Usage: "entries per board cross-checked against the team endpoint"},
			&cli.IntFlag{Name: "refreshes", Value: defaultRefreshes, Usage: "refresh requests fired at the overall board"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * defaultWorkers, Usage: "concurrent requests"},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "HTTP request timeout"},
			&cli.StringFlag{Name: "output", Usage: "save fetched boards to this JSON file"},
			&cli.BoolFlag{Name: "verbose", Usage: "log every board"},
		},
		Action: func(c *cli.Context) error {
			if err := logger.Init(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context, defaultRunTimeout)
			defer cancel()

			_, err := boardcheck.Run(ctx, &boardcheck.Config{
				BaseURL:    c.String("url"),
				Workers:    c.Int("workers"),
				Timeout:    c.Duration("timeout"),
				TopN:       c.Int("top"),
				Refreshes:  c.Int("refreshes"),
				OutputFile: c.String("output"),
				Verbose:    c.Bool("verbose"),
			})
			return err
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString("Check failed: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
