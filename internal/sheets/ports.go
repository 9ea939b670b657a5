package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends confirmed transactions to a spreadsheet.
	TransactionWriter interface {
		AppendTransactions(ctx context.Context, txs []core.Transaction) error
	}
)

// Header is the column layout written by every TransactionWriter.
var Header = []string{"Date", "Name", "Category", "Type", "Amount", "Notes", "ID", "Recurring ID"}
