package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// ExportWorker copies confirmed transactions from published events to a
// spreadsheet. Pending instances are skipped; they are exported by the
// confirmation event that follows them.
type ExportWorker struct {
	writer sheets.TransactionWriter
	logger *slog.Logger
}

func NewExportWorker(writer sheets.TransactionWriter) *ExportWorker {
	return &ExportWorker{
		writer: writer,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleEvent processes a single transaction event from AMQP. A returned
// error makes the consumer requeue the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		applog.FieldOperation, applog.OpExport,
		"type", event.Type,
		"transactions", len(event.Transactions),
		"timestamp", event.Timestamp)

	confirmed := event.Confirmed()
	if len(confirmed) == 0 {
		w.logger.DebugContext(ctx, "No confirmed transactions in event, nothing to export", "type", event.Type)
		return nil
	}

	if err := w.writer.AppendTransactions(ctx, confirmed); err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}

	ids := make([]string, len(confirmed))
	for i, tx := range confirmed {
		ids[i] = tx.ID
	}
	w.logger.InfoContext(ctx, "Exported transactions",
		applog.FieldOperation, applog.OpExport,
		"type", event.Type,
		"count", len(confirmed),
		"ids", ids)
	return nil
}
