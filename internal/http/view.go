package http

import (
	"budget/internal/core"
	"budget/internal/services"
)

// pageState is presentation-only state carried by query flags or a rejected form.
type pageState struct {
	ShowAdd     bool
	EditBudget  bool
	ShowHistory bool
	Error       string
	Form        services.ExpenseInput
	BudgetInput string
}

type expenseRow struct {
	ID       string
	Title    string
	Note     string
	Amount   string
	Category string
}

type categoryRow struct {
	Name   string
	Amount string
}

type historyRow struct {
	Month      string
	Budget     string
	Spent      string
	Remaining  string
	Overspent  bool
	Categories []categoryRow
}

type indexPage struct {
	pageState

	Month     string
	IsCurrent bool
	Budget    string
	Spent     string
	Remaining string
	Overspent bool

	Expenses   []expenseRow
	Totals     []categoryRow
	Categories []string
	History    []historyRow

	Saved     bool
	SaveError string
}

func newIndexPage(key, current core.MonthKey, rec core.MonthRecord, cats core.CategorySet, st services.SaveStatus, view pageState) indexPage {
	remaining := rec.Remaining()
	p := indexPage{
		pageState: view,
		Month:     string(key),
		IsCurrent: key == current,
		Budget:    formatDollars(rec.Budget),
		Spent:     formatDollars(rec.Spent()),
		Remaining: formatDollars(remaining),
		Overspent: remaining.IsNegative(),
		Saved:     st.Saved(),
		SaveError: st.LastError,
	}
	if p.BudgetInput == "" && view.EditBudget {
		p.BudgetInput = rec.Budget.String()
	}
	for _, e := range rec.Expenses {
		p.Expenses = append(p.Expenses, expenseRow{
			ID:       string(e.ID),
			Title:    e.Title,
			Note:     e.Note,
			Amount:   formatDollars(e.Amount),
			Category: string(e.Category),
		})
	}
	p.Totals = categoryRows(rec.ByCategory())
	for _, c := range cats.List() {
		p.Categories = append(p.Categories, string(c))
	}
	return p
}

func newHistoryRows(rows []core.MonthSummary) []historyRow {
	out := make([]historyRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, historyRow{
			Month:      string(r.Key),
			Budget:     formatDollars(r.Budget),
			Spent:      formatDollars(r.Spent),
			Remaining:  formatDollars(r.Remaining),
			Overspent:  r.Remaining.IsNegative(),
			Categories: categoryRows(r.ByCategory),
		})
	}
	return out
}

func categoryRows(in []core.CategoryAmount) []categoryRow {
	out := make([]categoryRow, 0, len(in))
	for _, c := range in {
		out = append(out, categoryRow{Name: string(c.Category), Amount: formatDollars(c.Amount)})
	}
	return out
}
