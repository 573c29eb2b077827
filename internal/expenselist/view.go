// Package expenselist keeps the expense list of one selected day, grouped by
// category or by hour of day, together with its count and total.
package expenselist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/live"
	applog "dailyexpense/internal/log"
)

// Mode selects how the day's expenses are grouped.
type Mode string

const (
	ModeCategory Mode = "CATEGORY"
	ModeTime     Mode = "TIME"
)

// ParseMode accepts "category" or "time" in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeCategory, ModeTime:
		return m, nil
	default:
		return "", fmt.Errorf("unknown grouping mode %q", s)
	}
}

// Source provides the live expense list of a day.
type Source interface {
	ExpensesForDay(day core.Date) *live.Query[[]core.Expense]
}

// Group is one section of the list. Expenses keep the newest-first order.
type Group struct {
	Key      string
	Expenses []core.Expense
}

type State struct {
	// Ready is false until the selected day's expenses have been loaded.
	Ready       bool
	SelectedDay core.Date
	Mode        Mode
	Groups      []Group
	TotalCount  int
	TotalAmount core.Money
}

// GroupExpenses partitions expenses by category or by hour label in loc.
// Groups appear in the order their first expense appears.
func GroupExpenses(expenses []core.Expense, mode Mode, loc *time.Location) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, e := range expenses {
		key := string(e.Category)
		if mode == ModeTime {
			key = core.HourLabel(e.Timestamp, loc)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Expenses = append(groups[i].Expenses, e)
	}
	return groups
}

// View follows the selected day. Intents only record the latest request and
// wake the Run goroutine, which owns the state.
type View struct {
	source Source
	clock  core.Clock
	state  *live.State[State]
	logger *applog.Logger

	mu      sync.Mutex
	pending struct {
		day  *core.Date
		mode *Mode
	}
	wake chan struct{}
}

// NewView starts on today in category mode.
func NewView(source Source, clock core.Clock) *View {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &View{
		source: source,
		clock:  clock,
		state:  live.NewState(State{SelectedDay: core.Today(clock), Mode: ModeCategory}),
		logger: applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentList}),
		wake:   make(chan struct{}, 1),
	}
}

func (v *View) State() State {
	return v.state.Get()
}

// Subscribe follows state changes; the current state is delivered first.
func (v *View) Subscribe() *live.Subscription[State] {
	return v.state.Subscribe()
}

// SetSelectedDate switches the list to day, taken in the clock's location.
func (v *View) SetSelectedDate(day core.Date) {
	day = core.DateOf(day.Time, v.clock.Location())
	v.mu.Lock()
	v.pending.day = &day
	v.mu.Unlock()
	v.signal()
}

func (v *View) SetGroupingMode(mode Mode) {
	v.mu.Lock()
	v.pending.mode = &mode
	v.mu.Unlock()
	v.signal()
}

func (v *View) signal() {
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// Run follows the selected day's expenses until ctx is done.
func (v *View) Run(ctx context.Context) error {
	var (
		day      = v.state.Get().SelectedDay
		mode     = v.state.Get().Mode
		expenses []core.Expense
		loaded   bool
		sub      *live.Subscription[[]core.Expense]
	)
	follow := func() {
		if sub != nil {
			sub.Close()
		}
		sub = v.source.ExpensesForDay(day).Subscribe()
		expenses, loaded = nil, false
	}
	publish := func() {
		v.state.Set(State{
			Ready:       loaded,
			SelectedDay: day,
			Mode:        mode,
			Groups:      GroupExpenses(expenses, mode, v.clock.Location()),
			TotalCount:  len(expenses),
			TotalAmount: core.Sum(expenses),
		})
	}
	follow()
	defer func() { sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-v.wake:
			v.mu.Lock()
			newDay, newMode := v.pending.day, v.pending.mode
			v.pending.day, v.pending.mode = nil, nil
			v.mu.Unlock()

			if newMode != nil && *newMode != mode {
				mode = *newMode
				v.logger.DebugContext(ctx, "Grouping mode changed", applog.FieldMode, mode)
			}
			if newDay != nil && !newDay.Equal(day.Time) {
				day = *newDay
				v.logger.DebugContext(ctx, "Selected day changed", applog.FieldDay, day.Key())
				follow()
			}
			publish()

		case list := <-sub.C():
			expenses, loaded = list, true
			publish()
		}
	}
}
