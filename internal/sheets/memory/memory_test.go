package memory

import (
	"context"
	"testing"

	"fintrack/internal/core"
)

func TestStoreAppendTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := core.Transaction{ID: "a", Name: "Rent", Amount: core.Money{Cents: -120000}}
	b := core.Transaction{ID: "b", Name: "Salary", Amount: core.Money{Cents: 250000}}
	if err := s.AppendTransactions(ctx, []core.Transaction{a, b}); err != nil {
		t.Fatalf("append: %v", err)
	}
	// redelivery of a must not add a second row
	if err := s.AppendTransactions(ctx, []core.Transaction{a}); err != nil {
		t.Fatalf("append again: %v", err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0].ID != "a" || rows[1].ID != "b" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestStoreRejectsMissingID(t *testing.T) {
	s := New()
	err := s.AppendTransactions(context.Background(), []core.Transaction{{ID: "x"}, {Name: "no id"}})
	if err == nil {
		t.Fatal("expected error for transaction without id")
	}
	if len(s.Rows()) != 0 {
		t.Fatalf("partial batch written: %+v", s.Rows())
	}
}
