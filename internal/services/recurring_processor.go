package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// ProcessSummary reports what one generation run did.
type ProcessSummary struct {
	Date        core.Date          `json:"date"`
	Created     []core.Transaction `json:"created"`
	Expired     []string           `json:"expired"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
}

// RecurringProcessor is the host around the recurrence engine: it loads
// state, runs GenerateDue, persists the merged result and notifies listeners.
type RecurringProcessor struct {
	ledger   *Ledger
	engine   *Engine
	notifier Notifier
	now      func() time.Time

	// concurrent refreshes for the same day share one run
	group singleflight.Group
}

// NewRecurringProcessor creates a new recurring transaction processor.
// engine and notifier may be nil.
func NewRecurringProcessor(ledger *Ledger, engine *Engine, notifier Notifier) *RecurringProcessor {
	if engine == nil {
		engine = NewEngine()
	}
	return &RecurringProcessor{
		ledger:   ledger,
		engine:   engine,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the processor's notion of "now".
func (p *RecurringProcessor) WithClock(now func() time.Time) *RecurringProcessor {
	p.now = now
	return p
}

// ProcessDue materializes every recurring transaction due on or before now.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (*ProcessSummary, error) {
	if p.ledger == nil {
		return nil, fmt.Errorf("processor not properly initialized")
	}

	today := core.DateOf(now)
	v, err, shared := p.group.Do(today.String(), func() (any, error) {
		return p.process(ctx, today)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.DebugContext(ctx, "Joined in-flight recurring run", "processing_date", today.String())
	}
	return v.(*ProcessSummary), nil
}

// ProcessDueNow runs ProcessDue with the processor's clock.
func (p *RecurringProcessor) ProcessDueNow(ctx context.Context) (*ProcessSummary, error) {
	return p.ProcessDue(ctx, p.now())
}

func (p *RecurringProcessor) process(ctx context.Context, today core.Date) (*ProcessSummary, error) {
	var (
		res     GenerateResult
		checked int
	)
	err := p.ledger.Update(ctx, func(state core.State) (core.State, bool, error) {
		checked = len(state.Definitions)
		slog.InfoContext(ctx, "Processing recurring transactions",
			"total_active", checked,
			"processing_date", today.String())

		res = p.engine.GenerateDue(state.Definitions, state.Transactions, today)
		changed := len(res.NewTransactions) > 0 || len(res.UpdatedDefinitions) > 0 || len(res.ExpiredDefinitionIDs) > 0
		if !changed {
			return state, false, nil
		}
		return Merge(state, res), true, nil
	})
	if err != nil {
		return nil, err
	}

	for _, d := range res.Diagnostics {
		slog.WarnContext(ctx, "Skipped malformed recurring definition",
			applog.FieldRecurringID, d.DefinitionID,
			applog.FieldError, d.Error)
	}
	for _, tx := range res.NewTransactions {
		slog.InfoContext(ctx, "Created transaction from recurring template",
			append(txFields(applog.OpGenerate, tx), "name", tx.Name, applog.FieldDate, tx.Date.String())...)
	}
	for _, id := range res.ExpiredDefinitionIDs {
		slog.InfoContext(ctx, "Recurring transaction ended", applog.FieldRecurringID, id)
	}

	if p.notifier != nil && len(res.NewTransactions) > 0 {
		if err := p.notifier.NotifyGenerated(ctx, res.NewTransactions); err != nil {
			// state is already saved
			slog.ErrorContext(ctx, "Failed to notify generated transactions",
				applog.NewFields().WithOperation(applog.OpGenerate).WithError(err).ToSlice()...)
		}
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", len(res.NewTransactions),
		"expired", len(res.ExpiredDefinitionIDs),
		"total_checked", checked)

	return &ProcessSummary{
		Date:        today,
		Created:     res.NewTransactions,
		Expired:     res.ExpiredDefinitionIDs,
		Diagnostics: res.Diagnostics,
	}, nil
}
