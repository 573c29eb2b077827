// Package cli provides the initialization shared by cmd/dailyexpense and
// cmd/report-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailyexpense/internal/amqp"
	"dailyexpense/internal/config"
	"dailyexpense/internal/core"
	"dailyexpense/internal/live"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/services"
	"dailyexpense/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger initializes structured logging on w at the given level and sets
// it as the default logger.
func SetupLogger(w io.Writer, level string) (*applog.Logger, error) {
	lvl, err := applog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: applog.ComponentApp,
		Handler:   applog.NewTextHandler(w, lvl),
	})
	applog.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Clock returns the system clock in the configured timezone.
func Clock(cfg *config.Config) (core.Clock, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return core.SystemClock{Loc: loc}, nil
}

// InitSQLite opens the expense store with a live hub configured from cfg and
// starts the hub's idle cleanup.
func InitSQLite(cfg *config.Config, clock core.Clock) (*storage.SQLiteRepository, error) {
	hub := live.NewHub(live.NewNotifier(), cfg.LiveGracePeriod)
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, hub, clock.Location())
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", cfg.SQLiteDBPath, err)
	}
	hub.StartCleanup(cfg.LiveCleanupInterval)
	return repo, nil
}

// InitAMQP connects to the broker. It returns nil without error when no
// AMQP URL is configured.
func InitAMQP(cfg *config.Config) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEventsQueue, cfg.AMQPExportQueue)
	if err != nil {
		return nil, fmt.Errorf("initialize AMQP client: %w", err)
	}
	return client, nil
}

// NewRepository fronts store with the expense repository, publishing events
// on client when there is one.
func NewRepository(store services.Store, client *amqp.Client) *services.ExpenseRepository {
	var events services.EventPublisher
	if client != nil {
		events = client
	}
	return services.NewExpenseRepository(store, events)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup()
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
