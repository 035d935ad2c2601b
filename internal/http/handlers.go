package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	key := s.monthFromQuery(r)
	q := r.URL.Query()
	view := pageState{
		ShowAdd:     q.Get("add") == "1",
		EditBudget:  q.Get("edit") == "budget",
		ShowHistory: q.Get("history") == "1",
	}
	s.renderIndex(w, r, http.StatusOK, key, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, log.OpRender)
		return
	}
	data := struct {
		Current string
		History []historyRow
	}{
		Current: string(s.store.CurrentMonth().Key()),
		History: newHistoryRows(rows),
	}
	s.render(w, r, http.StatusOK, "history_page.html", data)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	key := s.monthFromForm(r)
	in := services.ExpenseInput{
		Title:    sanitizeInput(r.PostForm.Get("title")),
		Note:     sanitizeInput(r.PostForm.Get("note")),
		Amount:   r.PostForm.Get("amount"),
		Category: r.PostForm.Get("category"),
	}

	if _, err := s.store.AddExpense(r.Context(), key, in); err != nil {
		if errors.Is(err, core.ErrValidation) {
			s.metrics.rejected.Add(1)
			view := pageState{ShowAdd: true, Error: validationMessage(err), Form: in}
			s.renderIndex(w, r, http.StatusUnprocessableEntity, key, view)
			return
		}
		s.writeStoreError(w, r, err, log.OpAdd)
		return
	}
	s.metrics.expensesAdded.Add(1)
	s.redirectHome(w, r, key)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	key := s.monthFromForm(r)
	id := core.ExpenseID(chi.URLParam(r, "id"))

	if err := s.store.DeleteExpense(r.Context(), key, id); err != nil {
		s.writeStoreError(w, r, err, log.OpDelete)
		return
	}
	s.metrics.expensesDeleted.Add(1)
	s.redirectHome(w, r, key)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	key := s.monthFromForm(r)
	raw := r.PostForm.Get("budget")

	if err := s.store.SetBudget(r.Context(), key, raw); err != nil {
		if errors.Is(err, core.ErrValidation) {
			s.metrics.rejected.Add(1)
			view := pageState{EditBudget: true, Error: validationMessage(err), BudgetInput: raw}
			s.renderIndex(w, r, http.StatusUnprocessableEntity, key, view)
			return
		}
		s.writeStoreError(w, r, err, log.OpSetBudget)
		return
	}
	s.metrics.budgetUpdates.Add(1)
	s.redirectHome(w, r, key)
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, key core.MonthKey, view pageState) {
	rec, err := s.store.Month(key)
	if err != nil {
		s.writeStoreError(w, r, err, log.OpRender)
		return
	}
	data := newIndexPage(key, s.store.CurrentMonth().Key(), rec, s.store.Categories(), s.store.SaveStatus(), view)
	if view.ShowHistory {
		rows, err := s.history(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err, log.OpRender)
			return
		}
		data.History = newHistoryRows(rows)
	}
	s.render(w, r, status, "index.html", data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err.Error(), "template", name, log.FieldOperation, log.OpRender)
	}
}

// redirectHome answers a successful form post with 303 back to the page of month key.
func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, key core.MonthKey) {
	target := "/"
	if key != s.store.CurrentMonth().Key() {
		target = "/?month=" + url.QueryEscape(string(key))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrNotInitialized):
		w.Header().Set("Retry-After", "5")
		http.Error(w, "Budget is still loading, try again shortly.", http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrValidation):
		http.Error(w, validationMessage(err), http.StatusUnprocessableEntity)
	default:
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, op,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
	}
}
