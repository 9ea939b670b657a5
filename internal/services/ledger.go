package services

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
)

// Ledger runs read-modify-write cycles against a StateStore so that a
// generation run and a user action never interleave. The store keeps other
// processes out; the mutex only spares them a wait on its lock.
type Ledger struct {
	mu        sync.Mutex
	store     StateStore
	listeners []func()
}

func NewLedger(store StateStore) *Ledger {
	return &Ledger{store: store}
}

// OnChange registers fn to run after every successful save. Register
// listeners before the ledger is shared.
func (l *Ledger) OnChange(fn func()) {
	l.listeners = append(l.listeners, fn)
}

// Read returns a snapshot of the persisted state.
func (l *Ledger) Read(ctx context.Context) (core.State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, err := l.store.LoadState(ctx)
	if err != nil {
		return core.State{}, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

// Update applies fn to the current state through the store, which saves the
// result when fn reports a change. An error from fn aborts without saving.
func (l *Ledger) Update(ctx context.Context, fn func(core.State) (core.State, bool, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed, err := l.store.UpdateState(ctx, fn)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	for _, fn := range l.listeners {
		fn()
	}
	return nil
}
