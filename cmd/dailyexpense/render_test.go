package main

import (
	"bytes"
	"testing"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/expenselist"
	"dailyexpense/internal/report"
	"dailyexpense/internal/settings"

	"github.com/stretchr/testify/assert"
)

func TestBarLength(t *testing.T) {
	assert.Equal(t, barWidth, barLength(1))
	assert.Equal(t, 15, barLength(0.5))
	assert.Equal(t, 1, barLength(0.001))
	assert.Equal(t, 0, barLength(0))
}

func TestRenderReport(t *testing.T) {
	day := core.NewDate(2024, 5, 8, time.UTC)
	state := report.State{
		Ready:  true,
		Window: report.WindowEnding(day),
		DailyTotals: []core.DailyTotal{
			{Day: day, Total: core.Money{Cents: 25000}},
		},
		CategoryTotals: []core.CategoryTotal{
			{Category: core.CategoryFood, Total: core.Money{Cents: 25000}},
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, palette(settings.ThemeDark), state)

	out := buf.String()
	assert.Contains(t, out, report.Title)
	assert.Contains(t, out, "Wed, May 8")
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "₹250.00")
}

func TestRenderEmptyList(t *testing.T) {
	var buf bytes.Buffer
	renderList(&buf, palette(settings.ThemeSystem), expenselist.State{
		Ready:       true,
		SelectedDay: core.NewDate(2024, 5, 8, time.UTC),
	})
	assert.Contains(t, buf.String(), "No expenses recorded.")
}
