package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/log"
)

type monthResponse struct {
	core.MonthSummary
	Expenses []core.Expense `json:"expenses"`
	Saved    bool           `json:"saved"`
}

func (s *Server) handleAPIMonth(w http.ResponseWriter, r *http.Request) {
	key := s.monthFromQuery(r)
	rec, err := s.store.Month(key)
	if err != nil {
		s.writeStoreError(w, r, err, log.OpRender)
		return
	}
	writeJSON(w, r, http.StatusOK, monthResponse{
		MonthSummary: rec.Summary(key),
		Expenses:     rec.Expenses,
		Saved:        s.store.SaveStatus().Saved(),
	})
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := s.history(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, log.OpRender)
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the store has loaded and whether the last save landed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ready() {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}

	st := s.store.SaveStatus()
	status := "ready"
	if !st.Saved() {
		status = "degraded"
	}
	save := map[string]any{
		"pending":        st.Pending,
		"saves":          st.Saves,
		"failures":       st.Failures,
		"last_saved_rev": st.LastSavedRev,
	}
	if st.LastError != "" {
		save["last_error"] = st.LastError
	}
	if !st.LastSavedAt.IsZero() {
		save["last_saved_at"] = st.LastSavedAt.Format(time.RFC3339)
	}
	if s.storage != nil {
		ts, err := s.storage.UpdatedAt(r.Context())
		switch {
		case err == nil:
			save["stored_at"] = ts.UTC().Format(time.RFC3339)
		case !errors.Is(err, gateway.ErrNotFound):
			log.FromContext(r.Context()).Warn("Failed to read document timestamp",
				log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeStorage)
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   status,
		"month":    s.store.CurrentMonth().Key(),
		"revision": s.store.Revision(),
		"save":     save,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	tm := s.trace.GetMetrics()
	rl := s.rateLimiter.GetMetrics()
	cs := s.historyCache.Stats()
	st := s.store.SaveStatus()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric("http_server_errors_total", "counter", "HTTP responses with a 5xx status", tm.ServerErrors)
	metric("http_response_time_avg_seconds", "gauge", "Average response time", tm.AverageResponseTime.Seconds())
	metric("expenses_added_total", "counter", "Expenses added", s.metrics.expensesAdded.Load())
	metric("expenses_deleted_total", "counter", "Expense delete requests", s.metrics.expensesDeleted.Load())
	metric("budget_updates_total", "counter", "Budget changes", s.metrics.budgetUpdates.Load())
	metric("validation_rejections_total", "counter", "Mutations rejected by validation", s.metrics.rejected.Load())
	metric("store_revision", "gauge", "Current in-memory revision", s.store.Revision())
	metric("store_saves_total", "counter", "Successful document saves", st.Saves)
	metric("store_save_failures_total", "counter", "Failed document saves", st.Failures)
	metric("store_save_pending", "gauge", "1 when a snapshot awaits storage", boolGauge(st.Pending))
	metric("history_cache_hits_total", "counter", "History cache hits", cs.Hits)
	metric("history_cache_misses_total", "counter", "History cache misses", cs.Misses)
	metric("history_cache_entries", "gauge", "History cache entries", cs.Size)
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", rl.Rejected)
	metric("rate_limit_clients", "gauge", "Currently tracked rate limit clients", rl.ClientCount)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.metrics.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to encode JSON response", log.FieldError, err.Error())
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
