package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"dailyexpense/internal/amqp"
	"dailyexpense/internal/cli"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger = logger.WithComponent(applog.ComponentWorker)

	logger.Info("Starting report-worker", applog.FieldPath, cfg.ExportDir)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report worker")
		os.Exit(1)
	}

	exportWorker, err := worker.NewExportWorker(cfg.ExportDir)
	if err != nil {
		logger.Error("Failed to initialize export worker", applog.FieldError, err)
		os.Exit(1)
	}

	client, err := cli.InitAMQP(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeReportExports(gctx, func(ctx context.Context, msg *amqp.ReportExport) error {
			_, err := exportWorker.HandleReportExport(ctx, msg)
			return err
		})
	})
	g.Go(func() error {
		return client.ConsumeExpenseEvents(gctx, exportWorker.HandleExpenseEvent)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", applog.FieldError, err)
		client.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
