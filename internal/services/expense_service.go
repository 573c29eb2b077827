package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dailyexpense/internal/amqp"
	"dailyexpense/internal/core"
	"dailyexpense/internal/live"
	applog "dailyexpense/internal/log"
)

// Store is the expense storage contract the repository fronts.
type Store interface {
	Insert(ctx context.Context, e core.Expense) (int64, error)
	Delete(ctx context.Context, e core.Expense) error
	ExpensesForDay(day core.Date) *live.Query[[]core.Expense]
	ExpensesByCategoryForDay(category core.Category, day core.Date) *live.Query[[]core.Expense]
	TotalForDay(day core.Date) *live.Query[*core.Money]
	ExpensesBetween(start, end time.Time) *live.Query[[]core.Expense]
	AllExpenses() *live.Query[[]core.Expense]
	CountDuplicates(ctx context.Context, title string, amount core.Money, day core.Date) (int, error)
	CategoryTotals(start, end time.Time) *live.Query[[]core.CategoryTotal]
	DailyTotals(start, end time.Time) *live.Query[[]core.DailyTotal]
	Close() error
}

// EventPublisher receives expense change events. *amqp.Client implements it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, evt *amqp.ExpenseEvent) error
	Close() error
}

// ExpenseRepository decouples callers from the storage technology. Reads pass
// straight through; successful writes are also announced on the optional
// event publisher.
type ExpenseRepository struct {
	store  Store
	events EventPublisher
}

// NewExpenseRepository wraps store. events may be nil.
func NewExpenseRepository(store Store, events EventPublisher) *ExpenseRepository {
	return &ExpenseRepository{
		store:  store,
		events: events,
	}
}

// Insert saves an expense locally and publishes a created event.
func (r *ExpenseRepository) Insert(ctx context.Context, e core.Expense) (int64, error) {
	id, err := r.store.Insert(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	e.ID = id
	r.publish(ctx, amqp.EventCreated, e)
	return id, nil
}

// Delete removes an expense locally and publishes a deleted event.
func (r *ExpenseRepository) Delete(ctx context.Context, e core.Expense) error {
	if err := r.store.Delete(ctx, e); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	r.publish(ctx, amqp.EventDeleted, e)
	return nil
}

func (r *ExpenseRepository) ExpensesForDay(day core.Date) *live.Query[[]core.Expense] {
	return r.store.ExpensesForDay(day)
}

func (r *ExpenseRepository) ExpensesByCategoryForDay(category core.Category, day core.Date) *live.Query[[]core.Expense] {
	return r.store.ExpensesByCategoryForDay(category, day)
}

func (r *ExpenseRepository) TotalForDay(day core.Date) *live.Query[*core.Money] {
	return r.store.TotalForDay(day)
}

func (r *ExpenseRepository) ExpensesBetween(start, end time.Time) *live.Query[[]core.Expense] {
	return r.store.ExpensesBetween(start, end)
}

func (r *ExpenseRepository) AllExpenses() *live.Query[[]core.Expense] {
	return r.store.AllExpenses()
}

func (r *ExpenseRepository) CountDuplicates(ctx context.Context, title string, amount core.Money, day core.Date) (int, error) {
	return r.store.CountDuplicates(ctx, title, amount, day)
}

// IsDuplicate reports whether an expense with the same title and amount
// already exists on day.
func (r *ExpenseRepository) IsDuplicate(ctx context.Context, title string, amount core.Money, day core.Date) (bool, error) {
	n, err := r.store.CountDuplicates(ctx, title, amount, day)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ExpenseRepository) CategoryTotals(start, end time.Time) *live.Query[[]core.CategoryTotal] {
	return r.store.CategoryTotals(start, end)
}

func (r *ExpenseRepository) DailyTotals(start, end time.Time) *live.Query[[]core.DailyTotal] {
	return r.store.DailyTotals(start, end)
}

// publish never fails the command: the expense is already persisted.
func (r *ExpenseRepository) publish(ctx context.Context, eventType string, e core.Expense) {
	if r.events == nil {
		return
	}

	if err := r.events.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(eventType, e)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldComponent, applog.ComponentRepository,
			applog.FieldOperation, eventType,
			"id", e.ID,
			applog.FieldError, err)
	}
}

// Close closes both storage and the event publisher.
func (r *ExpenseRepository) Close() error {
	var errs []error

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if r.events != nil {
		if err := r.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}
