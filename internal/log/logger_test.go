package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Handler: NewTextHandler(&buf, slog.LevelInfo), Component: ComponentApp})

	logger.WithComponent(ComponentStorage).Info("Expense saved", FieldExpenseID, 7)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=storage")
	assert.Contains(t, out, "expense_id=7")
	assert.Equal(t, 1, strings.Count(out, "component="))
	assert.NotContains(t, out, "hidden")
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithComponent(ComponentEntry).
		WithOperation(OpSubmit).
		WithExpense(0, "Lunch", 25000, "Food").
		WithError(nil)

	assert.Equal(t, "Lunch", fields[FieldTitle])
	assert.NotContains(t, fields, FieldExpenseID)
	assert.NotContains(t, fields, FieldError)
	assert.Len(t, fields.ToSlice(), len(fields)*2)
}
