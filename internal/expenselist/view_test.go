package expenselist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/live"
	"dailyexpense/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 5, day, hour, minute, 0, 0, ist)
}

func newStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	hub := live.NewHub(live.NewNotifier(), time.Minute)
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"), hub, ist)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insert(t *testing.T, repo *storage.SQLiteRepository, title string, cents int64, category core.Category, ts time.Time) {
	t.Helper()
	_, err := repo.Insert(context.Background(), core.Expense{
		Title:     title,
		Amount:    core.Money{Cents: cents},
		Category:  category,
		Timestamp: ts,
	})
	require.NoError(t, err)
}

func runView(t *testing.T, v *View) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, v *View, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(v.State()) }, 2*time.Second, 10*time.Millisecond)
	return v.State()
}

func sumGroups(groups []Group) (int, core.Money) {
	var (
		count int
		total core.Money
	)
	for _, g := range groups {
		count += len(g.Expenses)
		total = total.Add(core.Sum(g.Expenses))
	}
	return count, total
}

func TestGroupExpensesByCategory(t *testing.T) {
	expenses := []core.Expense{
		{Title: "Dinner", Category: core.CategoryFood, Timestamp: at(1, 20, 0)},
		{Title: "Taxi", Category: core.CategoryTravel, Timestamp: at(1, 18, 0)},
		{Title: "Lunch", Category: core.CategoryFood, Timestamp: at(1, 13, 0)},
	}

	groups := GroupExpenses(expenses, ModeCategory, ist)
	require.Len(t, groups, 2)
	assert.Equal(t, "Food", groups[0].Key)
	assert.Equal(t, "Dinner", groups[0].Expenses[0].Title)
	assert.Equal(t, "Lunch", groups[0].Expenses[1].Title)
	assert.Equal(t, "Travel", groups[1].Key)
}

func TestGroupExpensesByHour(t *testing.T) {
	expenses := []core.Expense{
		{Title: "Late", Timestamp: at(1, 13, 59)},
		{Title: "Afternoon", Timestamp: at(1, 13, 0)},
		{Title: "Noon", Timestamp: at(1, 12, 0)},
		{Title: "Midnight", Timestamp: at(1, 0, 0)},
	}

	groups := GroupExpenses(expenses, ModeTime, ist)
	require.Len(t, groups, 3)
	assert.Equal(t, "01:00 PM", groups[0].Key)
	assert.Len(t, groups[0].Expenses, 2)
	assert.Equal(t, "12:00 PM", groups[1].Key)
	assert.Equal(t, "12:00 AM", groups[2].Key)
}

func TestGroupExpensesEmpty(t *testing.T) {
	assert.Empty(t, GroupExpenses(nil, ModeCategory, ist))
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("time")
	require.NoError(t, err)
	assert.Equal(t, ModeTime, mode)

	_, err = ParseMode("weekday")
	assert.Error(t, err)
}

func TestViewTotalsMatchGroupsInBothModes(t *testing.T) {
	repo := newStore(t)
	insert(t, repo, "Lunch", 25000, core.CategoryFood, at(1, 13, 5))
	insert(t, repo, "Taxi", 1250, core.CategoryTravel, at(1, 13, 40))
	insert(t, repo, "Cleaner", 40000, core.CategoryStaff, at(1, 9, 0))
	insert(t, repo, "Tomorrow", 999, core.CategoryFood, at(2, 0, 0))

	v := NewView(repo, core.FixedClock{At: at(1, 21, 0)})
	runView(t, v)

	state := waitFor(t, v, func(s State) bool { return s.TotalCount == 3 })
	assert.Equal(t, ModeCategory, state.Mode)
	assert.Equal(t, int64(66250), state.TotalAmount.Cents)
	count, total := sumGroups(state.Groups)
	assert.Equal(t, state.TotalCount, count)
	assert.Equal(t, state.TotalAmount, total)
	assert.Len(t, state.Groups, 3)

	v.SetGroupingMode(ModeTime)
	state = waitFor(t, v, func(s State) bool { return s.Mode == ModeTime })
	count, total = sumGroups(state.Groups)
	assert.Equal(t, state.TotalCount, count)
	assert.Equal(t, state.TotalAmount, total)
	require.Len(t, state.Groups, 2)
	assert.Equal(t, "01:00 PM", state.Groups[0].Key)
	assert.Equal(t, "09:00 AM", state.Groups[1].Key)
}

func TestViewSelectedDateAndLiveUpdates(t *testing.T) {
	repo := newStore(t)
	insert(t, repo, "Lunch", 25000, core.CategoryFood, at(1, 13, 5))

	v := NewView(repo, core.FixedClock{At: at(1, 21, 0)})
	runView(t, v)
	waitFor(t, v, func(s State) bool { return s.TotalCount == 1 })

	v.SetSelectedDate(core.NewDate(2024, 5, 2, ist))
	state := waitFor(t, v, func(s State) bool { return s.Ready && s.SelectedDay.Day() == 2 })
	assert.Zero(t, state.TotalCount)
	assert.Empty(t, state.Groups)

	insert(t, repo, "Breakfast", 8000, core.CategoryFood, at(2, 8, 0))
	state = waitFor(t, v, func(s State) bool { return s.TotalCount == 1 })
	assert.Equal(t, "Breakfast", state.Groups[0].Expenses[0].Title)

	err := repo.Delete(context.Background(), state.Groups[0].Expenses[0])
	require.NoError(t, err)
	waitFor(t, v, func(s State) bool { return s.TotalCount == 0 && s.TotalAmount.Cents == 0 })
}
