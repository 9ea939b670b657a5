package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fintrack/internal/core"
)

// Store keeps the whole state in memory. When created with NewFromFile the
// state is also written back to that JSON file on every save. The file is
// owned by a single process: nothing stops a second Store elsewhere from
// overwriting it, which is why the recurring worker requires SQLite.
type Store struct {
	mu    sync.Mutex
	state core.State
	path  string
}

func New(state core.State) *Store {
	return &Store{state: clone(state)}
}

// NewFromFile seeds the store from a JSON state file. A missing file yields
// an empty store that creates the file on first save.
func NewFromFile(path string) (*Store, error) {
	s := &Store{path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.state); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", path, err)
	}
	return s, nil
}

// LoadState returns a copy of the stored state.
func (s *Store) LoadState(_ context.Context) (core.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state), nil
}

// SaveState replaces the stored state.
func (s *Store) SaveState(_ context.Context, state core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := clone(state)
	if s.path != "" {
		if err := writeFile(s.path, next); err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

// UpdateState applies fn under the store lock and keeps its result when fn
// reports a change.
func (s *Store) UpdateState(_ context.Context, fn func(core.State) (core.State, bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := fn(clone(s.state))
	if err != nil || !changed {
		return false, err
	}
	next = clone(next)
	if s.path != "" {
		if err := writeFile(s.path, next); err != nil {
			return false, fmt.Errorf("save state: %w", err)
		}
	}
	s.state = next
	return true, nil
}

func (s *Store) Close() error { return nil }

func writeFile(path string, state core.State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func clone(state core.State) core.State {
	out := core.State{
		Definitions:  make([]core.RecurrenceDefinition, len(state.Definitions)),
		Transactions: append([]core.Transaction(nil), state.Transactions...),
		Budgets:      state.Budgets,
	}
	out.Budgets.Limits = append([]core.BudgetLimit(nil), state.Budgets.Limits...)
	for i, def := range state.Definitions {
		def.CustomDates = append([]core.MonthDay(nil), def.CustomDates...)
		out.Definitions[i] = def
	}
	return out
}
