package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"dailyexpense/internal/amqp"
	"dailyexpense/internal/cli"
	"dailyexpense/internal/config"
	"dailyexpense/internal/core"
	"dailyexpense/internal/entry"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/services"
	"dailyexpense/internal/settings"
	"dailyexpense/internal/storage"
)

const usage = `Usage: dailyexpense <command> [flags]

Commands:
  add      record an expense for today
  list     show a day's expenses grouped by category or hour
  delete   remove an expense by id
  report   show the last 7 days
  export   export the last 7 days as text, or simulate a PDF export
  theme    show or set the theme mode (light, dark, system)
`

// app carries everything a command needs. Commands print to out; logs go to
// stderr.
type app struct {
	cfg      *config.Config
	clock    core.Clock
	store    *storage.SQLiteRepository
	amqp     *amqp.Client
	repo     *services.ExpenseRepository
	settings *settings.Store
	logger   *applog.Logger
	out      io.Writer
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"add":    runAdd,
	"list":   runList,
	"delete": runDelete,
	"report": runReport,
	"export": runExport,
	"theme":  runTheme,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := cli.SetupLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", applog.FieldError, err)
		os.Exit(1)
	}

	err = cmd(ctx, a, os.Args[2:])
	if cerr := a.close(); cerr != nil {
		logger.Warn("Failed to close resources", applog.FieldError, cerr)
	}
	if err != nil {
		switch {
		case core.IsValidation(err):
			fmt.Fprintln(os.Stderr, errorStyle().Render(entry.Message(err)))
		case errors.Is(err, settings.ErrInvalidThemeMode):
			fmt.Fprintln(os.Stderr, errorStyle().Render(err.Error()))
		default:
			logger.Error("Command failed", applog.FieldOperation, os.Args[1], applog.FieldError, err)
		}
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*app, error) {
	clock, err := cli.Clock(cfg)
	if err != nil {
		return nil, err
	}

	store, err := cli.InitSQLite(cfg, clock)
	if err != nil {
		return nil, err
	}

	prefs, err := settings.NewStore(ctx, store.DB())
	if err != nil {
		store.Close()
		return nil, err
	}

	client, err := cli.InitAMQP(cfg)
	if err != nil {
		// Events and queued exports are optional; the local store is not.
		logger.Warn("AMQP unavailable, continuing without events", applog.FieldError, err)
	}

	return &app{
		cfg:      cfg,
		clock:    clock,
		store:    store,
		amqp:     client,
		repo:     cli.NewRepository(store, client),
		settings: prefs,
		logger:   logger,
		out:      os.Stdout,
	}, nil
}

// close releases the repository, which closes the store and the AMQP client.
func (a *app) close() error {
	return a.repo.Close()
}
