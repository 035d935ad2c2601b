package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	Food           Category = "Food"
	Sports         Category = "Sports"
	Groceries      Category = "Groceries"
	Transportation Category = "Transportation"
	Miscellaneous  Category = "Miscellaneous"
)

type (
	// Category tags the purpose of an expense. Valid values come from a CategorySet.
	Category string

	// ExpenseID is an opaque token, unique within one month.
	ExpenseID string

	// MonthKey identifies a calendar month as short month name + 4-digit year, e.g. "Sep2025".
	MonthKey string

	Expense struct {
		ID       ExpenseID `json:"id"`
		Title    string    `json:"title"`
		Note     string    `json:"note"`
		Amount   Money     `json:"amount"`
		Category Category  `json:"category"`
	}

	MonthRecord struct {
		Budget   Money     `json:"budget"`
		Expenses []Expense `json:"expenses"`
	}

	// Document is the whole persisted state: one record per month.
	Document map[MonthKey]MonthRecord
)

// ErrValidation is wrapped by every input rejection.
var ErrValidation = errors.New("validation rejected")

var (
	ErrEmptyTitle       = fmt.Errorf("%w: empty title", ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be a finite non-negative number", ErrValidation)
	ErrInvalidBudget    = fmt.Errorf("%w: budget must be a finite number greater than zero", ErrValidation)
	ErrUnknownCategory  = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrInvalidMonthKey  = fmt.Errorf("%w: invalid month key", ErrValidation)
	ErrDuplicateExpense = errors.New("duplicate expense id")
)

// DefaultCategories is the category set used when no categories file is configured.
var DefaultCategories = []Category{Food, Sports, Groceries, Transportation, Miscellaneous}

// CategorySet is a closed, ordered set of categories.
type CategorySet struct {
	ordered []Category
	index   map[Category]struct{}
}

// NewCategorySet builds a set preserving first-seen order. Blank and duplicate names are dropped.
func NewCategorySet(names ...Category) CategorySet {
	s := CategorySet{index: make(map[Category]struct{}, len(names))}
	for _, n := range names {
		n = Category(strings.TrimSpace(string(n)))
		if n == "" {
			continue
		}
		if _, ok := s.index[n]; ok {
			continue
		}
		s.index[n] = struct{}{}
		s.ordered = append(s.ordered, n)
	}
	return s
}

// Contains reports whether c is a member of the set.
func (s CategorySet) Contains(c Category) bool {
	_, ok := s.index[c]
	return ok
}

// List returns the categories in display order.
func (s CategorySet) List() []Category {
	return append([]Category(nil), s.ordered...)
}

func (s CategorySet) Len() int { return len(s.ordered) }

// UnmarshalJSON accepts both string ids and the numeric timestamp ids of older documents.
func (id *ExpenseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExpenseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expense id: %w", err)
	}
	*id = ExpenseID(n.String())
	return nil
}

// Validate checks an expense against the closed category set.
func (e Expense) Validate(categories CategorySet) error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !categories.Contains(e.Category) {
		return ErrUnknownCategory
	}
	return nil
}

// NewMonthRecord returns an empty record with the given budget.
func NewMonthRecord(budget Money) MonthRecord {
	return MonthRecord{Budget: budget, Expenses: []Expense{}}
}

// Clone returns a copy that shares no slice with r.
func (r MonthRecord) Clone() MonthRecord {
	out := MonthRecord{Budget: r.Budget, Expenses: make([]Expense, len(r.Expenses))}
	copy(out.Expenses, r.Expenses)
	return out
}

// IndexOf returns the position of the first expense with the given id, or -1.
func (r MonthRecord) IndexOf(id ExpenseID) int {
	for i, e := range r.Expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Clone deep-copies the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, r := range d {
		out[k] = r.Clone()
	}
	return out
}

// Validate checks the structural invariants of a loaded document.
func (d Document) Validate() error {
	for k, r := range d {
		if r.Budget.IsNegative() {
			return fmt.Errorf("month %s: negative budget", k)
		}
		seen := make(map[ExpenseID]struct{}, len(r.Expenses))
		for _, e := range r.Expenses {
			if _, ok := seen[e.ID]; ok {
				return fmt.Errorf("month %s: %w %q", k, ErrDuplicateExpense, e.ID)
			}
			seen[e.ID] = struct{}{}
		}
	}
	return nil
}
