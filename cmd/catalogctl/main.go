package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/catalog-assistant/internal/bootstrap"
	"github.com/kirillkom/catalog-assistant/internal/cli"
	"github.com/kirillkom/catalog-assistant/internal/config"
	"github.com/kirillkom/catalog-assistant/internal/observability/logging"
)

const serviceName = "catalogctl"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(loadServices)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadServices(ctx context.Context, verbose bool) (*cli.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = cfg.LogLevel
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, level))

	app, err := bootstrap.New(ctx, *cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := app.Indexer.RestoreLatest(ctx); err != nil {
		slog.Debug("index_restore_skipped", "error", err)
	}
	return &cli.Services{
		Chat:    app.Chat,
		Indexer: app.Indexer,
		Close:   app.Close,
	}, nil
}
