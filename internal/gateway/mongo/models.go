package mongo

import (
	"fmt"

	"budget/internal/core"
	"budget/internal/gateway"
)

// documentDTO stores each month as a top-level field next to _id.
type documentDTO struct {
	ID     string              `bson:"_id"`
	Months map[string]monthDTO `bson:",inline"`
}

type monthDTO struct {
	Budget   float64      `bson:"budget"`
	Expenses []expenseDTO `bson:"expenses"`
}

type expenseDTO struct {
	ID       string  `bson:"id"`
	Title    string  `bson:"title"`
	Note     string  `bson:"note"`
	Amount   float64 `bson:"amount"`
	Category string  `bson:"category"`
}

func toDTO(doc core.Document) documentDTO {
	out := documentDTO{ID: gateway.DocumentID, Months: make(map[string]monthDTO, len(doc))}
	for k, r := range doc {
		m := monthDTO{Budget: r.Budget.Float64(), Expenses: make([]expenseDTO, 0, len(r.Expenses))}
		for _, e := range r.Expenses {
			m.Expenses = append(m.Expenses, expenseDTO{
				ID:       string(e.ID),
				Title:    e.Title,
				Note:     e.Note,
				Amount:   e.Amount.Float64(),
				Category: string(e.Category),
			})
		}
		out.Months[string(k)] = m
	}
	return out
}

func fromDTO(raw documentDTO) (core.Document, error) {
	doc := make(core.Document, len(raw.Months))
	for k, m := range raw.Months {
		budget, err := core.MoneyFromFloat(m.Budget)
		if err != nil {
			return nil, fmt.Errorf("month %s budget: %w", k, err)
		}
		rec := core.NewMonthRecord(budget)
		for _, e := range m.Expenses {
			amount, err := core.MoneyFromFloat(e.Amount)
			if err != nil {
				return nil, fmt.Errorf("month %s expense %s: %w", k, e.ID, err)
			}
			rec.Expenses = append(rec.Expenses, core.Expense{
				ID:       core.ExpenseID(e.ID),
				Title:    e.Title,
				Note:     e.Note,
				Amount:   amount,
				Category: core.Category(e.Category),
			})
		}
		doc[core.MonthKey(k)] = rec
	}
	return doc, nil
}
