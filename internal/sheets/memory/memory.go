package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

var _ ports.TransactionWriter = (*Store)(nil)

// Store keeps exported rows in memory. The sheets worker uses it in dry-run
// mode; tests use it to inspect what would have been written.
type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
	seen map[string]struct{}
}

func New() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// AppendTransactions stores each transaction once; an ID already exported is
// skipped so redelivered messages do not duplicate rows.
func (s *Store) AppendTransactions(_ context.Context, txs []core.Transaction) error {
	for _, tx := range txs {
		if tx.ID == "" {
			return fmt.Errorf("transaction without id: %q", tx.Name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if _, ok := s.seen[tx.ID]; ok {
			continue
		}
		s.seen[tx.ID] = struct{}{}
		s.rows = append(s.rows, tx)
	}
	return nil
}

// Rows returns a copy of everything exported so far, in append order.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}
