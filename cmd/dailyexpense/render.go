package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"dailyexpense/internal/core"
	"dailyexpense/internal/expenselist"
	"dailyexpense/internal/report"
	"dailyexpense/internal/settings"

	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth   = 30
	labelWidth = 12
)

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	bar    lipgloss.Style
	muted  lipgloss.Style
	amount lipgloss.Style
}

// color picks the light or dark variant for the theme mode; system lets the
// terminal background decide.
func color(mode settings.ThemeMode, light, dark string) lipgloss.TerminalColor {
	switch mode {
	case settings.ThemeLight:
		return lipgloss.Color(light)
	case settings.ThemeDark:
		return lipgloss.Color(dark)
	default:
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}
}

func palette(mode settings.ThemeMode) styles {
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(color(mode, "#1e66f5", "#89b4fa")),
		header: lipgloss.NewStyle().Bold(true).Foreground(color(mode, "#4c4f69", "#cdd6f4")),
		bar:    lipgloss.NewStyle().Foreground(color(mode, "#40a02b", "#a6e3a1")),
		muted:  lipgloss.NewStyle().Foreground(color(mode, "#8c8fa1", "#7f849c")),
		amount: lipgloss.NewStyle().Bold(true),
	}
}

func errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"})
}

func row(label, value string) string {
	return lipgloss.NewStyle().Width(labelWidth).Render(label) + " " + value
}

func renderList(w io.Writer, st styles, state expenselist.State) {
	fmt.Fprintln(w, st.title.Render(state.SelectedDay.Format("Monday, 2 January 2006")))
	if state.TotalCount == 0 {
		fmt.Fprintln(w, st.muted.Render("No expenses recorded."))
		return
	}

	for _, g := range state.Groups {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.header.Render(g.Key)+" "+st.muted.Render(core.Sum(g.Expenses).Rupees()))
		for _, e := range g.Expenses {
			line := fmt.Sprintf("  #%-4d %s  %s  %s", e.ID,
				e.Timestamp.Format("15:04"), st.amount.Render(e.Amount.Rupees()), e.Title)
			if state.Mode == expenselist.ModeTime {
				line += st.muted.Render(" [" + string(e.Category) + "]")
			}
			if e.Notes != nil {
				line += st.muted.Render(" (" + *e.Notes + ")")
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d expenses, total %s\n", state.TotalCount, st.amount.Render(state.TotalAmount.Rupees()))
}

func renderAll(w io.Writer, st styles, expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(w, st.muted.Render("No expenses recorded."))
		return
	}
	for _, e := range expenses {
		fmt.Fprintf(w, "#%-4d %s  %-8s %s  %s\n", e.ID,
			e.Timestamp.Format("2006-01-02 15:04"), e.Category, st.amount.Render(e.Amount.Rupees()), e.Title)
	}
	fmt.Fprintf(w, "\n%d expenses, total %s\n", len(expenses), st.amount.Render(core.Sum(expenses).Rupees()))
}

func renderReport(w io.Writer, st styles, state report.State) {
	fmt.Fprintln(w, st.title.Render(report.Title))
	fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("%s to %s",
		state.Window.Start.Format("Mon, Jan 2"), state.Window.End.Format("Mon, Jan 2"))))

	if len(state.DailyTotals) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.muted.Render("No expenses in the last 7 days."))
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.header.Render("Spending Overview"))
	for _, bar := range state.Bars() {
		fmt.Fprintln(w, row(bar.Label, st.bar.Render(strings.Repeat("█", barLength(bar.Share)))+" "+
			st.muted.Render(bar.Total.Rupees())))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.header.Render("Daily Totals"))
	for _, d := range state.DailyTotals {
		fmt.Fprintln(w, row(d.Day.Label(), st.amount.Render(d.Total.Rupees())))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.header.Render("Category-wise Totals"))
	for _, c := range state.CategoryTotals {
		fmt.Fprintln(w, row(string(c.Category), st.amount.Render(c.Total.Rupees())))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, row("Total", st.amount.Render(state.Total().Rupees())))
}

// barLength never renders a non-empty day as an empty bar.
func barLength(share float64) int {
	n := int(math.Round(share * barWidth))
	if n == 0 && share > 0 {
		n = 1
	}
	return n
}
