package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"

	_ "modernc.org/sqlite"
)

// busyTimeout is how long a writer waits for another process to release
// the database write lock.
const busyTimeout = 5 * time.Second

type SQLiteRepository struct {
	db *sql.DB
}

// queryer is the part of *sql.DB and *sql.Conn the loaders and writers use.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL lets the API read while the recurring worker holds the write lock
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection per process; other processes are kept out by UpdateState
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const (
	selectDefinitions = `SELECT id, name, amount_cents, type, category, notes, frequency,
		custom_dates, end_date, auto_confirm, next_due_date
		FROM recurring_definitions ORDER BY position`
	selectTransactions = `SELECT id, name, amount_cents, type, category, date, notes,
		status, recurring_id, created_at
		FROM transactions ORDER BY position`
	insertDefinition = `INSERT INTO recurring_definitions (id, name, amount_cents, type, category,
		notes, frequency, custom_dates, end_date, auto_confirm, next_due_date, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertTransaction = `INSERT INTO transactions (id, name, amount_cents, type, category, date,
		notes, status, recurring_id, created_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectBudgetSettings = `SELECT mode, total_cents FROM budget_settings WHERE id = 1`
	selectBudgetLimits   = `SELECT category, amount_cents, percent_hundredths
		FROM budget_limits ORDER BY position`
	insertBudgetSettings = `INSERT INTO budget_settings (id, mode, total_cents) VALUES (1, ?, ?)`
	insertBudgetLimit    = `INSERT INTO budget_limits (category, amount_cents, percent_hundredths, position)
		VALUES (?, ?, ?, ?)`
)

// LoadState implements services.StateStore
func (r *SQLiteRepository) LoadState(ctx context.Context) (core.State, error) {
	return loadState(ctx, r.db)
}

// UpdateState implements services.StateStore. The state is read, changed
// and rewritten inside one BEGIN IMMEDIATE transaction on a dedicated
// connection, so a writer in another process sharing the file waits for the
// commit and then works on the updated rows.
func (r *SQLiteRepository) UpdateState(ctx context.Context, fn func(core.State) (core.State, bool, error)) (bool, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return false, fmt.Errorf("begin write transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		// a cancelled ctx must not leave the transaction open on the pooled connection
		if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
			slog.DebugContext(ctx, "Rollback after aborted update failed", "error", err)
		}
	}()

	state, err := loadState(ctx, conn)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	next, changed, err := fn(state)
	if err != nil || !changed {
		return false, err
	}
	if err := writeState(ctx, conn, next); err != nil {
		return false, fmt.Errorf("save state: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return false, fmt.Errorf("save state: commit: %w", err)
	}
	committed = true

	slog.DebugContext(ctx, "State saved to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		"definitions", len(next.Definitions),
		"transactions", len(next.Transactions),
		"budget_limits", len(next.Budgets.Limits))
	return true, nil
}

// SaveState replaces the stored state with state.
func (r *SQLiteRepository) SaveState(ctx context.Context, state core.State) error {
	_, err := r.UpdateState(ctx, func(core.State) (core.State, bool, error) {
		return state, true, nil
	})
	return err
}

func loadState(ctx context.Context, q queryer) (core.State, error) {
	var state core.State

	defs, err := loadDefinitions(ctx, q)
	if err != nil {
		return state, err
	}
	txs, err := loadTransactions(ctx, q)
	if err != nil {
		return state, err
	}
	budgets, err := loadBudgets(ctx, q)
	if err != nil {
		return state, err
	}
	state.Definitions = defs
	state.Transactions = txs
	state.Budgets = budgets
	return state, nil
}

// writeState replaces every stored row; the caller owns the transaction.
func writeState(ctx context.Context, q queryer, state core.State) error {
	for _, table := range []string{"recurring_definitions", "transactions", "budget_limits", "budget_settings"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	defStmt, err := q.PrepareContext(ctx, insertDefinition)
	if err != nil {
		return fmt.Errorf("prepare definition insert: %w", err)
	}
	defer defStmt.Close()

	for i, def := range state.Definitions {
		_, err = defStmt.ExecContext(ctx,
			def.ID,
			def.Name,
			def.Amount.Abs().Cents,
			string(def.Type),
			def.Category,
			def.Notes,
			string(def.Frequency),
			formatCustomDates(def.CustomDates),
			nullableDate(def.EndDate),
			def.AutoConfirm,
			def.NextDueDate.String(),
			i,
		)
		if err != nil {
			return fmt.Errorf("insert definition %s: %w", def.ID, err)
		}
	}

	txStmt, err := q.PrepareContext(ctx, insertTransaction)
	if err != nil {
		return fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer txStmt.Close()

	for i, t := range state.Transactions {
		_, err = txStmt.ExecContext(ctx,
			t.ID,
			t.Name,
			t.Amount.Cents,
			string(t.Type),
			t.Category,
			t.Date.String(),
			t.Notes,
			string(t.Status),
			nullableString(t.RecurringID),
			t.CreatedAt.UTC().Format(time.RFC3339Nano),
			i,
		)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	return writeBudgets(ctx, q, state.Budgets)
}

func writeBudgets(ctx context.Context, q queryer, b core.Budgets) error {
	if b.Mode != "" || b.Total.Cents != 0 {
		if _, err := q.ExecContext(ctx, insertBudgetSettings, string(b.EffectiveMode()), b.Total.Cents); err != nil {
			return fmt.Errorf("insert budget settings: %w", err)
		}
	}
	for i, l := range b.Limits {
		if _, err := q.ExecContext(ctx, insertBudgetLimit, l.Category, l.Amount.Cents, l.Percent.Hundredths, i); err != nil {
			return fmt.Errorf("insert budget %s: %w", l.Category, err)
		}
	}
	return nil
}

func loadBudgets(ctx context.Context, q queryer) (core.Budgets, error) {
	var (
		b    core.Budgets
		mode string
	)
	err := q.QueryRowContext(ctx, selectBudgetSettings).Scan(&mode, &b.Total.Cents)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return b, fmt.Errorf("query budget settings: %w", err)
	default:
		b.Mode = core.BudgetMode(mode)
	}

	rows, err := q.QueryContext(ctx, selectBudgetLimits)
	if err != nil {
		return b, fmt.Errorf("query budget limits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l core.BudgetLimit
		if err := rows.Scan(&l.Category, &l.Amount.Cents, &l.Percent.Hundredths); err != nil {
			return b, fmt.Errorf("scan budget limit: %w", err)
		}
		b.Limits = append(b.Limits, l)
	}
	return b, rows.Err()
}

func loadDefinitions(ctx context.Context, q queryer) ([]core.RecurrenceDefinition, error) {
	rows, err := q.QueryContext(ctx, selectDefinitions)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var defs []core.RecurrenceDefinition
	for rows.Next() {
		var (
			def                    core.RecurrenceDefinition
			typ, freq, customDates string
			endDate                sql.NullString
			nextDue                string
		)
		if err := rows.Scan(&def.ID, &def.Name, &def.Amount.Cents, &typ, &def.Category, &def.Notes,
			&freq, &customDates, &endDate, &def.AutoConfirm, &nextDue); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		def.Type = core.TransactionType(typ)
		def.Frequency = core.Frequency(freq)
		if def.CustomDates, err = parseCustomDates(customDates); err != nil {
			return nil, fmt.Errorf("definition %s: %w", def.ID, err)
		}
		if endDate.Valid && endDate.String != "" {
			if def.EndDate, err = core.ParseDate(endDate.String); err != nil {
				return nil, fmt.Errorf("definition %s end date: %w", def.ID, err)
			}
		}
		if nextDue != "" {
			if def.NextDueDate, err = core.ParseDate(nextDue); err != nil {
				return nil, fmt.Errorf("definition %s next due date: %w", def.ID, err)
			}
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func loadTransactions(ctx context.Context, q queryer) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, selectTransactions)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		t                       core.Transaction
		typ, date, status, made string
		recurringID             sql.NullString
	)
	if err := rows.Scan(&t.ID, &t.Name, &t.Amount.Cents, &typ, &t.Category, &date, &t.Notes,
		&status, &recurringID, &made); err != nil {
		return t, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.Status = core.Status(status)
	t.RecurringID = recurringID.String

	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return t, fmt.Errorf("transaction %s date: %w", t.ID, err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, made); err != nil {
		return t, fmt.Errorf("transaction %s created_at: %w", t.ID, err)
	}
	return t, nil
}

func formatCustomDates(dates []core.MonthDay) string {
	parts := make([]string, len(dates))
	for i, md := range dates {
		parts[i] = md.String()
	}
	return strings.Join(parts, ",")
}

func parseCustomDates(s string) ([]core.MonthDay, error) {
	if s == "" {
		return nil, nil
	}
	var out []core.MonthDay
	for _, raw := range strings.Split(s, ",") {
		md, err := core.ParseMonthDay(raw)
		if err != nil {
			return nil, fmt.Errorf("custom date %q: %w", raw, err)
		}
		out = append(out, md)
	}
	return out, nil
}

func nullableDate(d core.Date) any {
	if d.IsEmpty() {
		return nil
	}
	return d.String()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
