// Package entry holds the add-expense form: field state, input normalisation,
// submission and the one-shot notices shown after it.
package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/live"
	applog "dailyexpense/internal/log"
)

// Repository is what the form needs from the expense repository.
type Repository interface {
	Insert(ctx context.Context, e core.Expense) (int64, error)
	IsDuplicate(ctx context.Context, title string, amount core.Money, day core.Date) (bool, error)
	TotalForDay(day core.Date) *live.Query[*core.Money]
}

// FieldState tracks a text input and its focus history so that validation
// hints appear only after the user has visited and left the field.
type FieldState struct {
	Text               string
	HasBeenFocusedOnce bool
	FocusLeft          bool
}

func (f FieldState) withFocus(hasFocus bool) FieldState {
	if hasFocus && !f.HasBeenFocusedOnce {
		f.HasBeenFocusedOnce = true
	}
	if !hasFocus && f.HasBeenFocusedOnce {
		f.FocusLeft = true
	}
	return f
}

// Form is the editable part of the state.
type Form struct {
	Title      FieldState
	Amount     FieldState
	Category   core.Category
	Notes      string
	ReceiptRef *string
}

func emptyForm() Form {
	return Form{Category: core.Categories[0]}
}

// State is the form plus its pending notices. Error and Success stay set
// until acknowledged with OnErrorShown and OnSuccessShown.
type State struct {
	Form
	Error   error
	Success bool
}

// Workflow serialises every intent on one mutex, so a submit and an edit
// never interleave.
type Workflow struct {
	repo   Repository
	clock  core.Clock
	logger *applog.Logger

	mu    sync.Mutex
	state *live.State[State]
}

func NewWorkflow(repo Repository, clock core.Clock) *Workflow {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Workflow{
		repo:   repo,
		clock:  clock,
		logger: applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentEntry}),
		state:  live.NewState(State{Form: emptyForm()}),
	}
}

func (w *Workflow) State() State {
	return w.state.Get()
}

// Subscribe follows state changes; the current state is delivered first.
func (w *Workflow) Subscribe() *live.Subscription[State] {
	return w.state.Subscribe()
}

// TodayTotal is the live amount spent today, nil while nothing was spent.
func (w *Workflow) TodayTotal() *live.Query[*core.Money] {
	return w.repo.TotalForDay(core.Today(w.clock))
}

func (w *Workflow) update(fn func(s *State)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state.Get()
	fn(&s)
	w.state.Set(s)
}

func (w *Workflow) OnTitleChange(text string) {
	w.update(func(s *State) { s.Title.Text = text })
}

func (w *Workflow) OnTitleFocusChange(hasFocus bool) {
	w.update(func(s *State) { s.Title = s.Title.withFocus(hasFocus) })
}

func (w *Workflow) OnAmountChange(text string) {
	w.update(func(s *State) { s.Amount.Text = text })
}

func (w *Workflow) OnAmountFocusChange(hasFocus bool) {
	w.update(func(s *State) { s.Amount = s.Amount.withFocus(hasFocus) })
}

// OnCategoryChange selects a category; values outside the set are rejected
// and leave the selection unchanged.
func (w *Workflow) OnCategoryChange(category core.Category) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidCategory, string(category))
	}
	w.update(func(s *State) { s.Category = category })
	return nil
}

// OnNotesChange stores notes clamped to core.MaxNotesLength characters.
func (w *Workflow) OnNotesChange(text string) {
	w.update(func(s *State) { s.Notes = core.TruncateNotes(text) })
}

// OnReceiptRefChange attaches or, with nil, detaches a receipt reference.
func (w *Workflow) OnReceiptRefChange(ref *string) {
	w.update(func(s *State) { s.ReceiptRef = ref })
}

func (w *Workflow) OnErrorShown() {
	w.update(func(s *State) { s.Error = nil })
}

func (w *Workflow) OnSuccessShown() {
	w.update(func(s *State) { s.Success = false })
}

// Submit validates the form and saves it as a new expense stamped with the
// current time. Checks run in order and the first failure is returned and
// queued as the pending error, unless an error is already pending. A storage
// failure is returned only; the form keeps its contents. On success the form
// is reset and a success notice is queued.
func (w *Workflow) Submit(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.state.Get()
	expense, err := w.validate(ctx, s.Form)
	if err != nil {
		if core.IsValidation(err) {
			w.logger.DebugContext(ctx, "Expense rejected",
				applog.FieldOperation, applog.OpValidate,
				applog.FieldError, err)
			if s.Error == nil {
				s.Error = err
				w.state.Set(s)
			}
		}
		return 0, err
	}

	id, err := w.repo.Insert(ctx, expense)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to save expense",
			applog.NewFields().
				WithOperation(applog.OpSubmit).
				WithExpense(0, expense.Title, expense.Amount.Cents, expense.Category.String()).
				WithError(err).
				ToSlice()...)
		return 0, err
	}

	w.logger.InfoContext(ctx, "Expense added",
		applog.NewFields().
			WithOperation(applog.OpSubmit).
			WithExpense(id, expense.Title, expense.Amount.Cents, expense.Category.String()).
			ToSlice()...)

	w.state.Set(State{Form: emptyForm(), Success: true})
	return id, nil
}

func (w *Workflow) validate(ctx context.Context, f Form) (core.Expense, error) {
	title := strings.TrimSpace(f.Title.Text)
	if title == "" {
		return core.Expense{}, core.ErrEmptyTitle
	}

	amount, err := core.ParseAmount(f.Amount.Text)
	if err != nil {
		return core.Expense{}, err
	}

	now := w.clock.Now().Truncate(time.Millisecond)
	dup, err := w.repo.IsDuplicate(ctx, title, amount, core.DateOf(now, w.clock.Location()))
	if err != nil {
		return core.Expense{}, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return core.Expense{}, core.ErrDuplicateExpense
	}

	e := core.Expense{
		Title:      title,
		Amount:     amount,
		Category:   f.Category,
		ReceiptRef: f.ReceiptRef,
		Timestamp:  now,
	}
	if strings.TrimSpace(f.Notes) != "" {
		notes := f.Notes
		e.Notes = &notes
	}
	return e, nil
}

// Message returns the text to show for a pending error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, target := range []error{
		core.ErrEmptyTitle,
		core.ErrInvalidAmount,
		core.ErrNotesTooLong,
		core.ErrDuplicateExpense,
		core.ErrInvalidCategory,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}
