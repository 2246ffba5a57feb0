package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/ctfboard/internal/adapters/http/api"
	"github.com/okian/ctfboard/internal/config"
	"github.com/okian/ctfboard/pkg/logger"
	"github.com/okian/ctfboard/pkg/metrics"
	"github.com/urfave/cli/v2"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		os.Stderr.WriteString("ctfboard: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "ctfboard",
		Usage:     "CTF scoreboard server",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{envConfigFile},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the board API",
				Action: serve,
			},
			newBoardCommand(),
			newSeedCommand(),
			newMigrateCommand(),
		},
	}
}

const envConfigFile = "CTFBOARD_CONFIG_FILE"

// loadConfig loads configuration and applies its logging settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		if err := os.Setenv(envConfigFile, path); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(c.Context)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel), logger.WithWriter(c.App.ErrWriter)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	ctx := c.Context
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	metrics.Init(metricsOptions(cfg.Metrics)...)
	log := logger.Get()

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
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop(context.WithoutCancel(ctx))

	go metrics.RunSystemCollector(ctx)

	srv := api.NewServer(svc,
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithLogger(log.Named("api")),
	)

	log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
	if err := api.ListenAndServe(ctx, cfg.Addr, srv.Routes()); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}
