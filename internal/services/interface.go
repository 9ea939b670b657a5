package services

import (
	"context"

	"fintrack/internal/core"
)

// StateStore persists the full definitions/transactions/budgets state. The
// services layer depends on this interface, not on a concrete backend.
//
//go:generate mockgen -destination=mocks/mock_services.go -package=mocks -source=interface.go
type StateStore interface {
	LoadState(ctx context.Context) (core.State, error)
	// UpdateState runs fn on the current state and saves its result, when fn
	// reports a change, as one atomic step that also excludes writers in
	// other processes sharing the storage. Errors from fn pass through
	// unchanged and nothing is saved.
	UpdateState(ctx context.Context, fn func(core.State) (core.State, bool, error)) (bool, error)
}

// Notifier is told about transactions that should reach downstream consumers
// (dashboards, spreadsheet export).
type Notifier interface {
	NotifyGenerated(ctx context.Context, txs []core.Transaction) error
	NotifyConfirmed(ctx context.Context, tx core.Transaction) error
}
