package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dailyexpense/internal/core"
	"dailyexpense/internal/live"

	_ "modernc.org/sqlite"
)

const expenseColumns = "id, title, amount_cents, category, notes, receipt_ref, timestamp_ms"

// SQLiteRepository is the expense store. Writes go straight to SQLite; reads
// are live queries that re-run whenever the expenses table changes.
type SQLiteRepository struct {
	db  *sql.DB
	hub *live.Hub
	loc *time.Location
}

// NewSQLiteRepository opens (or creates) the database at dbPath and applies
// migrations. Day bucketing in aggregates uses loc.
func NewSQLiteRepository(dbPath string, hub *live.Hub, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer, single reader path: SQLite serialises anyway and this
	// keeps live queries from racing writes into SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if hub == nil {
		hub = live.NewHub(live.NewNotifier(), live.DefaultGracePeriod)
	}
	if loc == nil {
		loc = time.Local
	}

	return &SQLiteRepository{db: db, hub: hub, loc: loc}, nil
}

// DB exposes the connection for stores sharing the same file.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

// Location is the timezone used for day bucketing.
func (r *SQLiteRepository) Location() *time.Location {
	return r.loc
}

func (r *SQLiteRepository) Close() error {
	r.hub.Stop()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Insert persists e and returns its id. A zero ID gets a fresh one from
// AUTOINCREMENT; an explicit ID replaces the row with that id.
func (r *SQLiteRepository) Insert(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var (
		res sql.Result
		err error
	)
	if e.ID == 0 {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO expenses (title, amount_cents, category, notes, receipt_ref, timestamp_ms)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Title, e.Amount.Cents, string(e.Category), e.Notes, e.ReceiptRef, e.Timestamp.UnixMilli())
	} else {
		res, err = r.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO expenses (id, title, amount_cents, category, notes, receipt_ref, timestamp_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Title, e.Amount.Cents, string(e.Category), e.Notes, e.ReceiptRef, e.Timestamp.UnixMilli())
	}
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id := e.ID
	if id == 0 {
		if id, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("read inserted id: %w", err)
		}
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"title", e.Title,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	r.hub.Notifier().Notify()
	return id, nil
}

// Delete removes e by id. Deleting an absent record is a no-op.
func (r *SQLiteRepository) Delete(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", e.ID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Delete of absent expense ignored", "id", e.ID)
		return nil
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", e.ID)
	r.hub.Notifier().Notify()
	return nil
}

// ExpensesForDay lists the day's expenses, newest first.
func (r *SQLiteRepository) ExpensesForDay(day core.Date) *live.Query[[]core.Expense] {
	start, end := day.Start().UnixMilli(), day.End().UnixMilli()
	return live.Register(r.hub, fmt.Sprintf("expenses_for_day:%d", start),
		func(ctx context.Context) ([]core.Expense, error) {
			return r.listExpenses(ctx,
				"WHERE timestamp_ms BETWEEN ? AND ? ORDER BY timestamp_ms DESC, id DESC", start, end)
		})
}

// ExpensesByCategoryForDay lists the day's expenses in one category, newest first.
func (r *SQLiteRepository) ExpensesByCategoryForDay(category core.Category, day core.Date) *live.Query[[]core.Expense] {
	start, end := day.Start().UnixMilli(), day.End().UnixMilli()
	return live.Register(r.hub, fmt.Sprintf("expenses_by_category_for_day:%s:%d", category, start),
		func(ctx context.Context) ([]core.Expense, error) {
			return r.listExpenses(ctx,
				"WHERE category = ? AND timestamp_ms BETWEEN ? AND ? ORDER BY timestamp_ms DESC, id DESC",
				string(category), start, end)
		})
}

// TotalForDay sums the day's amounts; the value is nil when the day has no expenses.
func (r *SQLiteRepository) TotalForDay(day core.Date) *live.Query[*core.Money] {
	start, end := day.Start().UnixMilli(), day.End().UnixMilli()
	return live.Register(r.hub, fmt.Sprintf("total_for_day:%d", start),
		func(ctx context.Context) (*core.Money, error) {
			var total sql.NullInt64
			err := r.db.QueryRowContext(ctx,
				"SELECT SUM(amount_cents) FROM expenses WHERE timestamp_ms BETWEEN ? AND ?",
				start, end).Scan(&total)
			if err != nil {
				return nil, fmt.Errorf("sum expenses for day: %w", err)
			}
			if !total.Valid {
				return nil, nil
			}
			return &core.Money{Cents: total.Int64}, nil
		})
}

// ExpensesBetween lists expenses with start <= timestamp <= end, newest first.
func (r *SQLiteRepository) ExpensesBetween(start, end time.Time) *live.Query[[]core.Expense] {
	from, to := start.UnixMilli(), end.UnixMilli()
	return live.Register(r.hub, fmt.Sprintf("expenses_between:%d:%d", from, to),
		func(ctx context.Context) ([]core.Expense, error) {
			return r.listExpenses(ctx,
				"WHERE timestamp_ms BETWEEN ? AND ? ORDER BY timestamp_ms DESC, id DESC", from, to)
		})
}

// AllExpenses lists every expense, newest first.
func (r *SQLiteRepository) AllExpenses() *live.Query[[]core.Expense] {
	return live.Register(r.hub, "all_expenses",
		func(ctx context.Context) ([]core.Expense, error) {
			return r.listExpenses(ctx, "ORDER BY timestamp_ms DESC, id DESC")
		})
}

// CountDuplicates counts expenses on day with exactly this title and amount.
func (r *SQLiteRepository) CountDuplicates(ctx context.Context, title string, amount core.Money, day core.Date) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses
		 WHERE title = ? AND amount_cents = ? AND timestamp_ms BETWEEN ? AND ?`,
		title, amount.Cents, day.Start().UnixMilli(), day.End().UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count duplicate expenses: %w", err)
	}
	return count, nil
}

// CategoryTotals sums amounts per category over [start, end], in category order.
func (r *SQLiteRepository) CategoryTotals(start, end time.Time) *live.Query[[]core.CategoryTotal] {
	from, to := start.UnixMilli(), end.UnixMilli()
	return live.Register(r.hub, fmt.Sprintf("category_totals:%d:%d", from, to),
		func(ctx context.Context) ([]core.CategoryTotal, error) {
			rows, err := r.db.QueryContext(ctx,
				`SELECT category, SUM(amount_cents) FROM expenses
				 WHERE timestamp_ms BETWEEN ? AND ?
				 GROUP BY category`, from, to)
			if err != nil {
				return nil, fmt.Errorf("query category totals: %w", err)
			}
			defer rows.Close()

			var totals []core.CategoryTotal
			for rows.Next() {
				var (
					category string
					cents    int64
				)
				if err := rows.Scan(&category, &cents); err != nil {
					return nil, fmt.Errorf("scan category total: %w", err)
				}
				totals = append(totals, core.CategoryTotal{
					Category: core.Category(category),
					Total:    core.Money{Cents: cents},
				})
			}
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("iterate category totals: %w", err)
			}

			sort.SliceStable(totals, func(i, j int) bool {
				return categoryRank(totals[i].Category) < categoryRank(totals[j].Category)
			})
			return totals, nil
		})
}

// DailyTotals sums amounts per calendar day over [start, end], oldest day first.
// Days are cut in the repository's location rather than in SQL, which only
// knows UTC and the process-local zone.
func (r *SQLiteRepository) DailyTotals(start, end time.Time) *live.Query[[]core.DailyTotal] {
	from, to := start.UnixMilli(), end.UnixMilli()
	return live.Register(r.hub, fmt.Sprintf("daily_totals:%d:%d", from, to),
		func(ctx context.Context) ([]core.DailyTotal, error) {
			rows, err := r.db.QueryContext(ctx,
				`SELECT timestamp_ms, amount_cents FROM expenses
				 WHERE timestamp_ms BETWEEN ? AND ?
				 ORDER BY timestamp_ms`, from, to)
			if err != nil {
				return nil, fmt.Errorf("query daily totals: %w", err)
			}
			defer rows.Close()

			var totals []core.DailyTotal
			for rows.Next() {
				var ts, cents int64
				if err := rows.Scan(&ts, &cents); err != nil {
					return nil, fmt.Errorf("scan daily total: %w", err)
				}
				day := core.DateOf(time.UnixMilli(ts), r.loc)
				if n := len(totals); n > 0 && totals[n-1].Day.Equal(day.Time) {
					totals[n-1].Total = totals[n-1].Total.Add(core.Money{Cents: cents})
					continue
				}
				totals = append(totals, core.DailyTotal{Day: day, Total: core.Money{Cents: cents}})
			}
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("iterate daily totals: %w", err)
			}
			return totals, nil
		})
}

func (r *SQLiteRepository) listExpenses(ctx context.Context, clause string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+expenseColumns+" FROM expenses "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e        core.Expense
			category string
			notes    sql.NullString
			receipt  sql.NullString
			ts       int64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Amount.Cents, &category, &notes, &receipt, &ts); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Category = core.Category(category)
		if notes.Valid {
			e.Notes = &notes.String
		}
		if receipt.Valid {
			e.ReceiptRef = &receipt.String
		}
		e.Timestamp = time.UnixMilli(ts).In(r.loc)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// categoryRank orders known categories by declaration and anything else last.
func categoryRank(c core.Category) int {
	if i := c.Index(); i >= 0 {
		return i
	}
	return len(core.Categories)
}
