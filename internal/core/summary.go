package core

import "sort"

// CategoryAmount is the spend of one category within a month.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}

// MonthSummary is one row of the history view.
type MonthSummary struct {
	Key        MonthKey         `json:"month"`
	Budget     Money            `json:"budget"`
	Spent      Money            `json:"spent"`
	Remaining  Money            `json:"remaining"`
	ByCategory []CategoryAmount `json:"categories"`
}

// Spent sums every expense amount of the month.
func (r MonthRecord) Spent() Money {
	var total Money
	for _, e := range r.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Remaining is budget minus spent; negative when overspent.
func (r MonthRecord) Remaining() Money {
	return r.Budget.Sub(r.Spent())
}

// CategoryTotals groups the month's spend by category. Categories without
// expenses are absent.
func (r MonthRecord) CategoryTotals() map[Category]Money {
	out := make(map[Category]Money)
	for _, e := range r.Expenses {
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}

// ByCategory is CategoryTotals ordered by first appearance in the expense list.
func (r MonthRecord) ByCategory() []CategoryAmount {
	var out []CategoryAmount
	pos := make(map[Category]int)
	for _, e := range r.Expenses {
		i, ok := pos[e.Category]
		if !ok {
			pos[e.Category] = len(out)
			out = append(out, CategoryAmount{Category: e.Category, Amount: e.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}

// Summary derives the history row for the record stored under k.
func (r MonthRecord) Summary(k MonthKey) MonthSummary {
	spent := r.Spent()
	return MonthSummary{
		Key:        k,
		Budget:     r.Budget,
		Spent:      spent,
		Remaining:  r.Budget.Sub(spent),
		ByCategory: r.ByCategory(),
	}
}

// History returns one summary per month, most recent calendar month first.
// Keys that do not parse as months sort after all valid ones, by string.
func (d Document) History() []MonthSummary {
	type entry struct {
		key   MonthKey
		month Month
		valid bool
	}
	entries := make([]entry, 0, len(d))
	for k := range d {
		m, err := ParseMonthKey(k)
		entries = append(entries, entry{key: k, month: m, valid: err == nil})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.valid && b.valid:
			return b.month.Before(a.month)
		case a.valid != b.valid:
			return a.valid
		default:
			return a.key < b.key
		}
	})

	out := make([]MonthSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, d[e.key].Summary(e.key))
	}
	return out
}
