package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"

	"example.com/prayer/internal/aggregates"
	"example.com/prayer/internal/backendclient"
	"example.com/prayer/internal/cli"
	"example.com/prayer/internal/config"
	"example.com/prayer/internal/guard"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	app := &cli.App{
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		},
		PromptPassword: cli.PromptPassword,
	}

	app.Setup = func(configPath string, tui bool) error {
		cfg, err := config.LoadClient(configPath)
		if err != nil {
			return err
		}

		store, err := guard.OpenSQLiteStore(cfg.StatePath)
		if err != nil {
			return fmt.Errorf("opening client state: %w", err)
		}
		closers = append(closers, store)

		logOut := io.Writer(os.Stderr)
		if tui {
			// The dashboard owns the terminal; log beside the state database instead.
			f, err := os.OpenFile(filepath.Join(filepath.Dir(cfg.StatePath), "prayer.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				logOut = io.Discard
			} else {
				closers = append(closers, f)
				logOut = f
			}
		}
		logger := log.New(logOut, "[sync] ", log.LstdFlags)

		g := guard.New(store, guard.WithLogger(logger))
		opts := []aggregates.Option{
			aggregates.WithLogger(logger),
			aggregates.WithCooldown(cfg.Cooldown()),
			aggregates.WithReconnectDelay(cfg.ReconnectDelay),
			aggregates.WithDemoDelay(cfg.DemoDelay),
		}

		if cfg.BackendURL == "" {
			app.Sync = aggregates.New(nil, g, opts...)
			return nil
		}
		client := backendclient.New(cfg.BackendURL, cfg.RequestTimeout)
		app.Sync = aggregates.New(client, g, opts...)
		app.Admin = client
		return nil
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}
