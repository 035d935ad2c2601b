package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/sheets"
)

// ExportWorker copies the budget history from the document store to a sheet.
type ExportWorker struct {
	gw         gateway.Gateway
	writer     sheets.HistoryWriter
	categories core.CategorySet
	now        func() time.Time

	mu           sync.Mutex
	lastExportAt time.Time
}

func NewExportWorker(gw gateway.Gateway, writer sheets.HistoryWriter, categories core.CategorySet) *ExportWorker {
	return &ExportWorker{
		gw:         gw,
		writer:     writer,
		categories: categories,
		now:        time.Now,
	}
}

// HandleBudgetChanged exports the history unless an export that started after
// the message was published has already succeeded.
func (w *ExportWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	w.mu.Lock()
	covered := !w.lastExportAt.IsZero() && msg.Timestamp.Before(w.lastExportAt)
	w.mu.Unlock()
	if covered {
		slog.DebugContext(ctx, "Skipping budget change already covered by a later export",
			"revision", msg.Revision)
		return nil
	}

	slog.InfoContext(ctx, "Processing budget changed message",
		"revision", msg.Revision,
		"month", msg.Month)
	return w.Export(ctx)
}

// Export loads the current document and rewrites the whole history sheet.
func (w *ExportWorker) Export(ctx context.Context) error {
	started := w.now()

	doc, err := w.gw.Load(ctx)
	if errors.Is(err, gateway.ErrNotFound) {
		slog.InfoContext(ctx, "No budget document yet, nothing to export")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load budget document: %w", err)
	}

	rows := doc.History()
	if err := w.writer.WriteHistory(ctx, rows, columns(rows, w.categories)); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	w.mu.Lock()
	if started.After(w.lastExportAt) {
		w.lastExportAt = started
	}
	w.mu.Unlock()

	slog.InfoContext(ctx, "Exported budget history", "months", len(rows))
	return nil
}

// columns lists the configured categories first, then any other category
// found in rows, in order of appearance.
func columns(rows []core.MonthSummary, set core.CategorySet) []core.Category {
	out := set.List()
	for _, r := range rows {
		for _, ca := range r.ByCategory {
			if !set.Contains(ca.Category) {
				set = core.NewCategorySet(append(set.List(), ca.Category)...)
				out = append(out, ca.Category)
			}
		}
	}
	return out
}
