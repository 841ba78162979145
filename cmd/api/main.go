package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/catalog-assistant/internal/adapters/http"
	"github.com/kirillkom/catalog-assistant/internal/bootstrap"
	"github.com/kirillkom/catalog-assistant/internal/config"
	"github.com/kirillkom/catalog-assistant/internal/observability/logging"
	"github.com/kirillkom/catalog-assistant/internal/observability/metrics"
)

const serviceName = "catalog-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, *cfg, bootstrap.WithPipelineObserver(httpMetrics))
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Warm(ctx); err != nil {
		slog.Error("index_warmup_failed", "error", err)
	}

	go func() {
		if err := app.FollowIndexReady(ctx); err != nil {
			slog.Error("index_ready_subscription_failed", "error", err)
		}
	}()
	if app.InProcessJobs {
		go func() {
			if err := app.ProcessJobs(ctx, nil); err != nil {
				slog.Error("reindex_jobs_failed", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Chat:     app.Chat,
		Indexer:  app.Indexer,
		Uploader: app.Uploader,
		Runs:     app.Runs,
		Metrics:  httpMetrics,
	}, httpadapter.RouterOptions{
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
	})

	// Streaming answers and synchronous reindexing can run for minutes, so
	// there is no write timeout.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "in_process_jobs", app.InProcessJobs)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
