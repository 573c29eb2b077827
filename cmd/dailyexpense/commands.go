package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/entry"
	"dailyexpense/internal/expenselist"
	"dailyexpense/internal/live"
	"dailyexpense/internal/report"
	"dailyexpense/internal/settings"

	"golang.org/x/sync/errgroup"
)

const viewTimeout = 10 * time.Second

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	title := fs.String("title", "", "expense title")
	amount := fs.String("amount", "", "amount in rupees, e.g. 250 or 12,50")
	category := fs.String("category", string(core.Categories[0]), "Staff, Travel, Food or Utility")
	notes := fs.String("notes", "", "optional notes, at most 100 characters")
	receipt := fs.String("receipt", "", "optional receipt path or URI")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cat, err := core.ParseCategory(*category)
	if err != nil {
		return err
	}

	w := entry.NewWorkflow(a.repo, a.clock)
	w.OnTitleChange(*title)
	w.OnAmountChange(*amount)
	if err := w.OnCategoryChange(cat); err != nil {
		return err
	}
	w.OnNotesChange(*notes)
	if *receipt != "" {
		w.OnReceiptRefChange(receipt)
	}

	id, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	w.OnSuccessShown()

	st := palette(a.settings.ThemeMode())
	fmt.Fprintf(a.out, "Expense added (#%d)\n", id)

	total, err := w.TodayTotal().Snapshot(ctx)
	if err != nil {
		return err
	}
	if total != nil {
		fmt.Fprintln(a.out, "Total spent today: "+st.amount.Render(total.Rupees()))
	}
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	date := fs.String("date", "", "day to show as YYYY-MM-DD (default today)")
	group := fs.String("group", "category", "group by category or time")
	all := fs.Bool("all", false, "list every expense, newest first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st := palette(a.settings.ThemeMode())

	if *all {
		expenses, err := a.repo.AllExpenses().Snapshot(ctx)
		if err != nil {
			return err
		}
		renderAll(a.out, st, expenses)
		return nil
	}

	mode, err := expenselist.ParseMode(*group)
	if err != nil {
		return err
	}
	day := core.Today(a.clock)
	if *date != "" {
		t, err := time.ParseInLocation("2006-01-02", *date, a.clock.Location())
		if err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD", *date)
		}
		day = core.DateOf(t, a.clock.Location())
	}

	v := expenselist.NewView(a.repo, a.clock)
	v.SetSelectedDate(day)
	v.SetGroupingMode(mode)

	state, err := await(ctx, v.Run, v.Subscribe(), func(s expenselist.State) bool {
		return s.Ready && s.Mode == mode && s.SelectedDay.Equal(day.Time)
	})
	if err != nil {
		return err
	}
	renderList(a.out, st, state)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.Int64("id", 0, "id of the expense to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 && fs.NArg() > 0 {
		n, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", fs.Arg(0))
		}
		*id = n
	}
	if *id <= 0 {
		return errors.New("an expense id is required")
	}

	if err := a.repo.Delete(ctx, core.Expense{ID: *id}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Expense #%d deleted\n", *id)
	return nil
}

func runReport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	state, err := loadReport(ctx, a)
	if err != nil {
		return err
	}
	renderReport(a.out, palette(a.settings.ThemeMode()), state)
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", "text", "text or pdf")
	out := fs.String("out", "", "write the text export to this file instead of stdout")
	queue := fs.Bool("queue", false, "queue the export for the report worker (requires AMQP_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *format {
	case "pdf":
		fmt.Fprintln(a.out, report.SimulatePDFExport())
		return nil
	case "text":
	default:
		return fmt.Errorf("unknown export format %q: want text or pdf", *format)
	}

	var exporter report.Exporter = report.WriterExporter{W: a.out}
	switch {
	case *queue:
		if a.amqp == nil {
			return errors.New("queued export needs AMQP_URL")
		}
		exporter = a.amqp
	case *out != "":
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		exporter = report.WriterExporter{W: f}
	}

	v := report.NewView(a.repo, a.clock)
	if _, err := await(ctx, v.Run, v.Subscribe(), func(s report.State) bool { return s.Ready }); err != nil {
		return err
	}
	if _, err := v.Export(ctx, exporter); err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	switch {
	case *queue:
		fmt.Fprintln(a.out, "Report queued for export")
	case *out != "":
		fmt.Fprintf(a.out, "Report written to %s\n", *out)
	}
	return nil
}

func runTheme(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, a.settings.ThemeMode())
		return nil
	}

	mode, err := settings.ParseThemeMode(args[0])
	if err != nil {
		return err
	}
	if err := a.settings.SetThemeMode(ctx, mode); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Theme mode set to %s\n", mode)
	return nil
}

func loadReport(ctx context.Context, a *app) (report.State, error) {
	v := report.NewView(a.repo, a.clock)
	return await(ctx, v.Run, v.Subscribe(), func(s report.State) bool { return s.Ready })
}

// await runs a view until it publishes a state accepted by ready, then stops it.
func await[S any](ctx context.Context, run func(context.Context) error, sub *live.Subscription[S], ready func(S) bool) (S, error) {
	defer sub.Close()

	ctx, cancel := context.WithTimeout(ctx, viewTimeout)
	defer cancel()

	var (
		result S
		found  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		for {
			select {
			case s, ok := <-sub.C():
				if !ok {
					return errors.New("view closed")
				}
				if ready(s) {
					result, found = s, true
					return nil
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err := g.Wait()
	if found {
		return result, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return result, errors.New("timed out loading expenses")
	}
	return result, err
}
