package report

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/live"
	applog "dailyexpense/internal/log"
)

// WindowDays is the length of the trailing report window, today included.
const WindowDays = 7

// Source provides the live aggregates a report is built from.
type Source interface {
	DailyTotals(start, end time.Time) *live.Query[[]core.DailyTotal]
	CategoryTotals(start, end time.Time) *live.Query[[]core.CategoryTotal]
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowEnding returns the trailing window that ends with today: from the
// start of today-6 to the last millisecond of today.
func WindowEnding(today core.Date) Window {
	return Window{
		Start: today.AddDays(-(WindowDays - 1)).Start(),
		End:   today.End(),
	}
}

// State is what the report screen renders.
type State struct {
	// Ready is false until both aggregates of the current window are loaded.
	Ready  bool
	Window Window
	// DailyTotals holds one entry per day with expenses, newest day first.
	DailyTotals []core.DailyTotal
	// CategoryTotals holds categories with expenses only, in category order.
	CategoryTotals []core.CategoryTotal
}

// Document renders the state's daily totals as a text export.
func (s State) Document() Document {
	return TextDocument(s.DailyTotals)
}

func (s State) Bars() []Bar {
	return Bars(s.DailyTotals)
}

// Total sums the whole window.
func (s State) Total() core.Money {
	var total core.Money
	for _, d := range s.DailyTotals {
		total = total.Add(d.Total)
	}
	return total
}

// View keeps the report State current. All state changes happen on the Run
// goroutine; Refresh only posts a message to it.
type View struct {
	source  Source
	clock   core.Clock
	state   *live.State[State]
	refresh chan struct{}
	logger  *applog.Logger
}

func NewView(source Source, clock core.Clock) *View {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &View{
		source:  source,
		clock:   clock,
		state:   live.NewState(State{Window: WindowEnding(core.Today(clock))}),
		refresh: make(chan struct{}, 1),
		logger:  applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentReport}),
	}
}

// Refresh asks the view to recompute its window, e.g. after midnight.
// Pending refreshes coalesce.
func (v *View) Refresh() {
	select {
	case v.refresh <- struct{}{}:
	default:
	}
}

// State returns the latest computed state.
func (v *View) State() State {
	return v.state.Get()
}

// Subscribe follows state changes; the current state is delivered first.
func (v *View) Subscribe() *live.Subscription[State] {
	return v.state.Subscribe()
}

// Export renders the current state and hands it to exporter.
func (v *View) Export(ctx context.Context, exporter Exporter) (Document, error) {
	state := v.State()
	doc := state.Document()
	if err := exporter.Export(ctx, doc); err != nil {
		return Document{}, err
	}
	v.logger.InfoContext(ctx, "Report exported",
		applog.FieldOperation, applog.OpExport,
		"days", len(state.DailyTotals))
	return doc, nil
}

// Run follows the live aggregates for the current window until ctx is done.
func (v *View) Run(ctx context.Context) error {
	var (
		window                  Window
		daily                   *live.Subscription[[]core.DailyTotal]
		cats                    *live.Subscription[[]core.CategoryTotal]
		dailyLoaded, catsLoaded bool
	)
	unsubscribe := func() {
		if daily != nil {
			daily.Close()
			cats.Close()
		}
	}
	subscribe := func() {
		unsubscribe()
		window = WindowEnding(core.Today(v.clock))
		daily = v.source.DailyTotals(window.Start, window.End).Subscribe()
		cats = v.source.CategoryTotals(window.Start, window.End).Subscribe()
		dailyLoaded, catsLoaded = false, false

		v.logger.DebugContext(ctx, "Report window selected",
			applog.FieldWindowStart, window.Start,
			applog.FieldWindowEnd, window.End)
		v.state.Set(State{Window: window})
	}
	defer unsubscribe()
	subscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-v.refresh:
			subscribe()

		case totals := <-daily.C():
			s := v.state.Get()
			s.DailyTotals = newestFirst(totals)
			dailyLoaded = true
			s.Ready = dailyLoaded && catsLoaded
			v.state.Set(s)

		case totals := <-cats.C():
			s := v.state.Get()
			s.CategoryTotals = nonZero(totals)
			catsLoaded = true
			s.Ready = dailyLoaded && catsLoaded
			v.state.Set(s)
		}
	}
}

func newestFirst(totals []core.DailyTotal) []core.DailyTotal {
	out := slices.Clone(totals)
	slices.SortFunc(out, func(a, b core.DailyTotal) int {
		return b.Day.Compare(a.Day.Time)
	})
	return out
}

func nonZero(totals []core.CategoryTotal) []core.CategoryTotal {
	out := make([]core.CategoryTotal, 0, len(totals))
	for _, t := range totals {
		if t.Total.Cents != 0 {
			out = append(out, t)
		}
	}
	return out
}
