package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"gotit/internal/config"
	"gotit/internal/events"
	"gotit/internal/export"
	"gotit/internal/export/google"
	"gotit/internal/export/memory"
	"gotit/internal/log"
	"gotit/internal/storage"
	"gotit/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.NewFromEnv(log.ComponentWorker)
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var (
		appender export.RowAppender
		remover  export.RowRemover
	)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.ExportBackend {
	case config.ExportBackendSheets:
		client, err := google.NewFromEnv(ctx)
		if err != nil {
			logger.Error("failed to initialize Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		appender, remover = client, client
		logger.Info("sheets export backend initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		store := memory.New()
		appender, remover = store, store
		logger.Info("memory export backend initialized")
	}

	exportWorker := worker.NewExportWorker(repo, appender, remover, cfg.ExportBatchSize)

	// Drain anything that accumulated while the worker was down.
	if err := exportWorker.CatchUp(ctx); err != nil {
		logger.Error("startup catch-up failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer eventsClient.Close()

		g.Go(func() error {
			err := eventsClient.ConsumeItemChanges(gctx, func(msg *events.ItemChangeMessage) error {
				return exportWorker.HandleChangeMessage(gctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		logger.Info("consuming change events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("change event consumption disabled, no AMQP_URL provided")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := exportWorker.CatchUp(gctx); err != nil {
					logger.Error("periodic catch-up failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker stopped gracefully")
}
