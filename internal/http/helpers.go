package http

import (
	"errors"
	"net/http"
	"strings"

	"budget/internal/core"
)

// formatDollars renders an amount as "$12.34", or "-$12.34" when negative.
func formatDollars(m core.Money) string {
	if m.IsNegative() {
		return "-$" + m.Decimal().Neg().StringFixed(2)
	}
	return "$" + m.String()
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// monthFromQuery picks the month shown by a GET request: ?month=Sep2025, or the current month.
func (s *Server) monthFromQuery(r *http.Request) core.MonthKey {
	return s.monthOrCurrent(r.URL.Query().Get("month"))
}

// monthFromForm picks the month a form post applies to.
func (s *Server) monthFromForm(r *http.Request) core.MonthKey {
	return s.monthOrCurrent(r.PostForm.Get("month"))
}

func (s *Server) monthOrCurrent(raw string) core.MonthKey {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if m, err := core.ParseMonthKey(core.MonthKey(raw)); err == nil {
			return m.Key()
		}
	}
	return s.store.CurrentMonth().Key()
}

// validationMessage turns a validation error into the text shown above a form.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyTitle):
		return "Please enter a title."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a number of zero or more."
	case errors.Is(err, core.ErrInvalidBudget):
		return "Budget must be a number greater than zero."
	case errors.Is(err, core.ErrUnknownCategory):
		return "Please pick one of the listed categories."
	case errors.Is(err, core.ErrInvalidMonthKey):
		return "Unknown month."
	default:
		return "The input was not accepted."
	}
}
