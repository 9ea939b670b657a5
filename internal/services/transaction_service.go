package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// TransactionService orchestrates user-driven changes to the ledger and
// tells the notifier about confirmed money movements.
type TransactionService struct {
	ledger   *Ledger
	engine   *Engine
	notifier Notifier
	now      func() time.Time
}

// NewTransactionService wires the service. engine and notifier may be nil.
func NewTransactionService(ledger *Ledger, engine *Engine, notifier Notifier) *TransactionService {
	if engine == nil {
		engine = NewEngine()
	}
	return &TransactionService{
		ledger:   ledger,
		engine:   engine,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the service's notion of "now".
func (s *TransactionService) WithClock(now func() time.Time) *TransactionService {
	s.now = now
	return s
}

// CreateTransaction records a manual, already confirmed transaction. The
// amount sign is derived from the type.
func (s *TransactionService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx = s.normalize(tx)
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		state.Transactions = append(state.Transactions, tx)
		return state, true, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		append(txFields(applog.OpCreate, tx), applog.FieldDate, tx.Date.String())...)
	s.notifyConfirmed(ctx, tx)
	return tx, nil
}

// CreateRecurring stores def as a recurring template. The occurrence on
// startDate is recorded immediately as a confirmed transaction and the
// definition's pointer starts at the following occurrence. When no
// occurrence follows startDate within EndDate, only the transaction is kept
// and the returned definition is nil.
func (s *TransactionService) CreateRecurring(ctx context.Context, def core.RecurrenceDefinition, startDate core.Date) (*core.RecurrenceDefinition, core.Transaction, error) {
	if err := startDate.Validate(); err != nil {
		return nil, core.Transaction{}, &core.ValidationError{Field: "date", Err: err}
	}
	def.Amount = def.Amount.Abs()
	def.Name = strings.TrimSpace(def.Name)
	def.NextDueDate = core.Date{}
	if err := def.Validate(); err != nil {
		return nil, core.Transaction{}, err
	}
	if !def.EndDate.IsEmpty() && def.EndDate.Before(startDate) {
		return nil, core.Transaction{}, &core.ValidationError{Field: "endDate", Err: core.ErrEndBeforeStart}
	}
	if def.ID == "" {
		def.ID = s.engine.NewID()
	}

	tx := s.normalize(core.Transaction{
		Name:     def.Name,
		Amount:   def.Amount,
		Type:     def.Type,
		Category: def.Category,
		Date:     startDate,
		Notes:    def.Notes,
	})

	var stored *core.RecurrenceDefinition
	if next, ok := Advance(def, startDate); ok {
		def.NextDueDate = next
		stored = &def
	}

	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		if stored != nil {
			for _, existing := range state.Definitions {
				if existing.ID == stored.ID {
					return state, false, &core.ValidationError{Field: "id", Err: core.ErrDuplicateID}
				}
			}
			state.Definitions = append(state.Definitions, *stored)
		}
		state.Transactions = append(state.Transactions, tx)
		return state, true, nil
	})
	if err != nil {
		return nil, core.Transaction{}, err
	}

	if stored != nil {
		slog.InfoContext(ctx, "Recurring transaction created",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldRecurringID, stored.ID,
			"frequency", stored.Frequency,
			"next_due_date", stored.NextDueDate.String())
	} else {
		slog.InfoContext(ctx, "Recurring transaction ends before its second occurrence",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldTransactionID, tx.ID)
	}
	s.notifyConfirmed(ctx, tx)
	return stored, tx, nil
}

// Confirm promotes a pending instance to confirmed, dated today.
func (s *TransactionService) Confirm(ctx context.Context, id string) (core.Transaction, error) {
	today := core.DateOf(s.now())

	var confirmed core.Transaction
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		txs, tx, err := Confirm(state.Transactions, id, today)
		if err != nil {
			return state, false, err
		}
		state.Transactions = txs
		confirmed = tx
		return state, true, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Pending transaction confirmed", txFields(applog.OpConfirm, confirmed)...)
	s.notifyConfirmed(ctx, confirmed)
	return confirmed, nil
}

// DiscardPending removes a pending instance. The definition's pointer is not
// rewound, so the occurrence is skipped for good.
func (s *TransactionService) DiscardPending(ctx context.Context, id string) (core.Transaction, error) {
	var removed core.Transaction
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		txs, tx, err := DiscardPending(state.Transactions, id)
		if err != nil {
			return state, false, err
		}
		state.Transactions = txs
		removed = tx
		return state, true, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Pending transaction discarded", txFields(applog.OpDiscard, removed)...)
	return removed, nil
}

// Update replaces the user-editable fields of transaction id: name, amount,
// type, category, date and notes. Status, recurring link and creation time
// are kept, so editing a pending instance does not confirm it.
func (s *TransactionService) Update(ctx context.Context, id string, edit core.Transaction) (core.Transaction, error) {
	var updated core.Transaction
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		i := indexOf(state.Transactions, id)
		if i < 0 {
			return state, false, &core.NotFoundError{Kind: "transaction", ID: id}
		}
		tx := state.Transactions[i]
		tx.Name = strings.TrimSpace(edit.Name)
		tx.Type = edit.Type
		tx.Amount = edit.Amount.Signed(edit.Type)
		tx.Category = strings.TrimSpace(edit.Category)
		if tx.Type == core.Income && tx.Category == "" {
			tx.Category = string(core.Income)
		}
		if !edit.Date.IsEmpty() {
			tx.Date = edit.Date
		}
		tx.Notes = strings.TrimSpace(edit.Notes)
		if err := tx.Validate(); err != nil {
			return state, false, err
		}

		txs := append([]core.Transaction(nil), state.Transactions...)
		txs[i] = tx
		state.Transactions = txs
		updated = tx
		return state, true, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated",
		append(txFields(applog.OpUpdate, updated), applog.FieldDate, updated.Date.String())...)
	return updated, nil
}

// Delete removes a transaction whatever its status. Deleting a pending
// instance skips its occurrence just like DiscardPending.
func (s *TransactionService) Delete(ctx context.Context, id string) (core.Transaction, error) {
	var removed core.Transaction
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		i := indexOf(state.Transactions, id)
		if i < 0 {
			return state, false, &core.NotFoundError{Kind: "transaction", ID: id}
		}
		removed = state.Transactions[i]
		txs := make([]core.Transaction, 0, len(state.Transactions)-1)
		txs = append(txs, state.Transactions[:i]...)
		state.Transactions = append(txs, state.Transactions[i+1:]...)
		return state, true, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction deleted", txFields(applog.OpDelete, removed)...)
	return removed, nil
}

// DeleteRecurring stops a recurring template. Instances it already produced
// are kept.
func (s *TransactionService) DeleteRecurring(ctx context.Context, id string) error {
	err := s.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		defs := make([]core.RecurrenceDefinition, 0, len(state.Definitions))
		for _, def := range state.Definitions {
			if def.ID != id {
				defs = append(defs, def)
			}
		}
		if len(defs) == len(state.Definitions) {
			return state, false, &core.NotFoundError{Kind: "recurring transaction", ID: id}
		}
		state.Definitions = defs
		return state, true, nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldRecurringID, id)
	return nil
}

// ListTransactions returns every transaction, newest first.
func (s *TransactionService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	state, err := s.ledger.Read(ctx)
	if err != nil {
		return nil, err
	}
	txs := append([]core.Transaction(nil), state.Transactions...)
	sortNewestFirst(txs)
	return txs, nil
}

// ListPending returns the pending instances awaiting review, oldest first.
func (s *TransactionService) ListPending(ctx context.Context) ([]core.Transaction, error) {
	state, err := s.ledger.Read(ctx)
	if err != nil {
		return nil, err
	}
	var pending []core.Transaction
	for _, tx := range state.Transactions {
		if tx.IsPending() {
			pending = append(pending, tx)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Date.Before(pending[j].Date)
	})
	return pending, nil
}

// ListRecurring returns the active recurring templates ordered by their
// next due date.
func (s *TransactionService) ListRecurring(ctx context.Context) ([]core.RecurrenceDefinition, error) {
	state, err := s.ledger.Read(ctx)
	if err != nil {
		return nil, err
	}
	defs := append([]core.RecurrenceDefinition(nil), state.Definitions...)
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].NextDueDate.Before(defs[j].NextDueDate)
	})
	return defs, nil
}

func (s *TransactionService) normalize(tx core.Transaction) core.Transaction {
	if tx.ID == "" {
		tx.ID = s.engine.NewID()
	}
	tx.Name = strings.TrimSpace(tx.Name)
	tx.Amount = tx.Amount.Signed(tx.Type)
	tx.Category = strings.TrimSpace(tx.Category)
	if tx.Type == core.Income && tx.Category == "" {
		tx.Category = string(core.Income)
	}
	tx.Status = core.StatusConfirmed
	tx.RecurringID = ""
	tx.CreatedAt = s.engine.Now().UTC()
	return tx
}

func (s *TransactionService) notifyConfirmed(ctx context.Context, tx core.Transaction) {
	if s.notifier == nil {
		slog.DebugContext(ctx, "Notifier not available, skipping confirmed event")
		return
	}
	if err := s.notifier.NotifyConfirmed(ctx, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish confirmed transaction",
			applog.NewFields().WithTransaction(tx.ID, tx.RecurringID, tx.Amount.Cents, string(tx.Status)).WithError(err).ToSlice()...)
	}
}

func indexOf(txs []core.Transaction, id string) int {
	for i, tx := range txs {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

// txFields are the log attributes of an operation on tx.
func txFields(op string, tx core.Transaction) []any {
	return applog.NewFields().
		WithOperation(op).
		WithTransaction(tx.ID, tx.RecurringID, tx.Amount.Cents, string(tx.Status)).
		ToSlice()
}

func sortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
