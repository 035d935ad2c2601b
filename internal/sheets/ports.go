package sheets

import (
	"context"

	"budget/internal/core"
)

// HistoryWriter replaces the exported history with rows, one per month.
// categories fixes the order of the per-category columns.
type HistoryWriter interface {
	WriteHistory(ctx context.Context, rows []core.MonthSummary, categories []core.Category) error
}

// Header returns the column titles of an exported history table.
func Header(categories []core.Category) []string {
	h := []string{"Month", "Budget", "Spent", "Remaining"}
	for _, c := range categories {
		h = append(h, string(c))
	}
	return h
}
