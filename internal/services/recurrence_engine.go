package services

import (
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// Diagnostic reports a definition that was skipped during generation.
type Diagnostic struct {
	DefinitionID string `json:"definitionId"`
	Error        string `json:"error"`
}

// GenerateResult is everything a generation run produced. The caller merges
// it into its state and persists it before the next run.
type GenerateResult struct {
	NewTransactions      []core.Transaction
	UpdatedDefinitions   []core.RecurrenceDefinition
	ExpiredDefinitionIDs []string
	Diagnostics          []Diagnostic
}

// Engine materializes due recurring transactions. It holds no state between
// calls; ids and creation timestamps come from injectable functions.
type Engine struct {
	NewID func() string
	Now   func() time.Time
}

// NewEngine returns an engine issuing random UUIDs.
func NewEngine() *Engine {
	return &Engine{
		NewID: uuid.NewString,
		Now:   time.Now,
	}
}

// GenerateDue scans definitions once. Every definition whose NextDueDate is on
// or before today yields at most one instance and has its pointer advanced;
// definitions whose next occurrence passes EndDate are reported as expired.
// Invalid definitions are skipped and reported in Diagnostics.
func (e *Engine) GenerateDue(definitions []core.RecurrenceDefinition, transactions []core.Transaction, today core.Date) GenerateResult {
	var res GenerateResult

	pending := pendingIndex(transactions)

	for _, def := range definitions {
		if err := def.Validate(); err != nil {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{DefinitionID: def.ID, Error: err.Error()})
			continue
		}
		if def.NextDueDate.IsEmpty() {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{DefinitionID: def.ID, Error: "missing next due date"})
			continue
		}
		if def.NextDueDate.After(today) {
			continue
		}

		key := pendingKey{recurringID: def.ID, date: def.NextDueDate.String()}
		if _, exists := pending[key]; exists {
			continue
		}

		tx := e.instantiate(def)
		if def.AutoConfirm {
			tx.Status = core.StatusConfirmed
			tx.Date = today
		} else {
			pending[key] = struct{}{}
		}
		res.NewTransactions = append(res.NewTransactions, tx)

		next, ok := Advance(def, def.NextDueDate)
		if !ok {
			res.ExpiredDefinitionIDs = append(res.ExpiredDefinitionIDs, def.ID)
			continue
		}
		def.NextDueDate = next
		res.UpdatedDefinitions = append(res.UpdatedDefinitions, def)
	}

	return res
}

func (e *Engine) instantiate(def core.RecurrenceDefinition) core.Transaction {
	category := def.Category
	if def.Type == core.Income && category == "" {
		category = string(core.Income)
	}
	return core.Transaction{
		ID:          e.NewID(),
		Name:        def.Name,
		Amount:      def.Amount.Signed(def.Type),
		Type:        def.Type,
		Category:    category,
		Date:        def.NextDueDate,
		Notes:       def.Notes,
		Status:      core.StatusPending,
		RecurringID: def.ID,
		CreatedAt:   e.Now().UTC(),
	}
}

type pendingKey struct {
	recurringID string
	date        string
}

func pendingIndex(transactions []core.Transaction) map[pendingKey]struct{} {
	idx := make(map[pendingKey]struct{})
	for _, tx := range transactions {
		if tx.RecurringID == "" || !tx.IsPending() {
			continue
		}
		idx[pendingKey{recurringID: tx.RecurringID, date: tx.Date.String()}] = struct{}{}
	}
	return idx
}

// Confirm promotes a pending transaction to confirmed and dates it today.
// It returns a new slice; the input is left untouched. Missing or
// already-confirmed ids fail with a NotFoundError.
func Confirm(transactions []core.Transaction, id string, today core.Date) ([]core.Transaction, core.Transaction, error) {
	i := findPending(transactions, id)
	if i < 0 {
		return transactions, core.Transaction{}, &core.NotFoundError{Kind: "pending transaction", ID: id}
	}
	out := append([]core.Transaction(nil), transactions...)
	out[i].Status = core.StatusConfirmed
	out[i].Date = today
	return out, out[i], nil
}

// DiscardPending removes a pending transaction permanently, under the same
// lookup rules as Confirm.
func DiscardPending(transactions []core.Transaction, id string) ([]core.Transaction, core.Transaction, error) {
	i := findPending(transactions, id)
	if i < 0 {
		return transactions, core.Transaction{}, &core.NotFoundError{Kind: "pending transaction", ID: id}
	}
	removed := transactions[i]
	out := make([]core.Transaction, 0, len(transactions)-1)
	out = append(out, transactions[:i]...)
	out = append(out, transactions[i+1:]...)
	return out, removed, nil
}

func findPending(transactions []core.Transaction, id string) int {
	for i, tx := range transactions {
		if tx.ID == id && tx.IsPending() {
			return i
		}
	}
	return -1
}

// Merge applies a generation result to state and returns the new state.
func Merge(state core.State, res GenerateResult) core.State {
	updated := make(map[string]core.RecurrenceDefinition, len(res.UpdatedDefinitions))
	for _, def := range res.UpdatedDefinitions {
		updated[def.ID] = def
	}
	expired := make(map[string]struct{}, len(res.ExpiredDefinitionIDs))
	for _, id := range res.ExpiredDefinitionIDs {
		expired[id] = struct{}{}
	}

	out := core.State{
		Definitions:  make([]core.RecurrenceDefinition, 0, len(state.Definitions)),
		Transactions: make([]core.Transaction, 0, len(state.Transactions)+len(res.NewTransactions)),
	}
	for _, def := range state.Definitions {
		if _, gone := expired[def.ID]; gone {
			continue
		}
		if u, ok := updated[def.ID]; ok {
			def = u
		}
		out.Definitions = append(out.Definitions, def)
	}
	out.Transactions = append(out.Transactions, state.Transactions...)
	out.Transactions = append(out.Transactions, res.NewTransactions...)
	return out
}
