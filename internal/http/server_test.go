package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/gateway/memory"
	"budget/internal/services"
	"budget/internal/storage"
)

type stubSaver struct {
	mu     sync.Mutex
	snaps  []services.Snapshot
	status services.SaveStatus
}

func (s *stubSaver) Submit(snap services.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *stubSaver) Status() services.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

var sep2025 = time.Date(2025, time.September, 14, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, doc core.Document, initialize bool) (*Server, *services.BudgetStore, *stubSaver) {
	t.Helper()
	gw := memory.New()
	if doc != nil {
		gw = memory.NewWithDocument(doc)
	}
	saver := &stubSaver{}
	store := services.NewBudgetStore(gw, saver, services.StoreConfig{
		DefaultBudget: core.Cents(200000),
		Now:           func() time.Time { return sep2025 },
	}, nil)
	if initialize {
		if err := store.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}
	srv, err := NewServer(":0", store, nil, Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store, saver
}

func do(t *testing.T, srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndex(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, true)

	rr := do(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Sep2025", "$2000.00", "No expenses yet."} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Contains(body, `name="title"`) {
		t.Error("add form rendered without ?add=1")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}

	rr = do(t, srv, http.MethodGet, "/?add=1", nil)
	body = rr.Body.String()
	if !strings.Contains(body, `name="title"`) || !strings.Contains(body, `<option value="Transportation"`) {
		t.Error("add form missing with ?add=1")
	}

	rr = do(t, srv, http.MethodGet, "/?edit=budget", nil)
	if !strings.Contains(rr.Body.String(), `name="budget"`) {
		t.Error("budget form missing with ?edit=budget")
	}
}

func TestAddThenDeleteExpense(t *testing.T) {
	srv, store, saver := newTestServer(t, nil, true)

	rr := do(t, srv, http.MethodPost, "/expenses", url.Values{
		"title": {"Coffee"}, "note": {""}, "amount": {"4.50"}, "category": {"Food"},
	})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("add: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	body := do(t, srv, http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(body, "Coffee") || !strings.Contains(body, "$1995.50") {
		t.Fatalf("expense not rendered: %s", body)
	}

	rec, err := store.Month("Sep2025")
	if err != nil || len(rec.Expenses) != 1 {
		t.Fatalf("Month: %+v, %v", rec, err)
	}
	id := rec.Expenses[0].ID

	rr = do(t, srv, http.MethodPost, "/expenses/"+string(id)+"/delete", url.Values{"month": {"Sep2025"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete: status=%d", rr.Code)
	}
	if got, _ := store.Remaining("Sep2025"); got != core.Cents(200000) {
		t.Fatalf("remaining after delete = %v", got)
	}
	if len(saver.snaps) < 3 {
		t.Fatalf("expected snapshots for init, add and delete, got %d", len(saver.snaps))
	}
}

func TestAddExpenseRejected(t *testing.T) {
	srv, store, _ := newTestServer(t, nil, true)

	tests := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"empty title", url.Values{"title": {"  "}, "amount": {"10"}, "category": {"Food"}}, "Please enter a title."},
		{"bad amount", url.Values{"title": {"Lunch"}, "amount": {"abc"}, "category": {"Food"}}, "Amount must be"},
		{"negative amount", url.Values{"title": {"Lunch"}, "amount": {"-1"}, "category": {"Food"}}, "Amount must be"},
		{"unknown category", url.Values{"title": {"Lunch"}, "amount": {"1"}, "category": {"Rent"}}, "listed categories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/expenses", tt.form)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.msg) {
				t.Fatalf("body missing %q", tt.msg)
			}
		})
	}
	rec, _ := store.Month("Sep2025")
	if len(rec.Expenses) != 0 {
		t.Fatalf("rejected input changed state: %+v", rec.Expenses)
	}
}

func TestSetBudget(t *testing.T) {
	srv, store, _ := newTestServer(t, nil, true)

	for _, raw := range []string{"0", "-5", "abc"} {
		rr := do(t, srv, http.MethodPost, "/budget", url.Values{"budget": {raw}})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("budget %q: status = %d", raw, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/budget", url.Values{"budget": {"500.5"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rr.Code)
	}
	rec, _ := store.Month("Sep2025")
	if rec.Budget != core.Cents(50050) {
		t.Fatalf("budget = %v", rec.Budget)
	}
	if !strings.Contains(do(t, srv, http.MethodGet, "/", nil).Body.String(), "$500.50") {
		t.Fatal("new budget not rendered")
	}
}

func TestOtherMonthRedirect(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, true)
	rr := do(t, srv, http.MethodPost, "/budget", url.Values{"budget": {"100"}, "month": {"Aug2025"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/?month=Aug2025" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if !strings.Contains(do(t, srv, http.MethodGet, "/?month=Aug2025", nil).Body.String(), "$100.00") {
		t.Fatal("Aug2025 budget not rendered")
	}
}

func TestHistory(t *testing.T) {
	doc := core.Document{
		"Jan2026": core.NewMonthRecord(core.Cents(100000)),
		"Dec2025": {Budget: core.Cents(100000), Expenses: []core.Expense{
			{ID: "1", Title: "Train", Amount: core.Cents(120000), Category: core.Transportation},
		}},
	}
	srv, _, _ := newTestServer(t, doc, true)

	rr := do(t, srv, http.MethodGet, "/api/history", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var rows []core.MonthSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var keys []string
	for _, r := range rows {
		keys = append(keys, string(r.Key))
	}
	if got := strings.Join(keys, ","); got != "Jan2026,Dec2025,Sep2025" {
		t.Fatalf("history order = %s", got)
	}

	body := do(t, srv, http.MethodGet, "/history", nil).Body.String()
	if strings.Index(body, "Jan2026") > strings.Index(body, "Dec2025") {
		t.Fatal("history page not in calendar order")
	}
	if !strings.Contains(body, "-$200.00") {
		t.Fatal("overspend not rendered as negative")
	}

	// second read is served from the cache
	do(t, srv, http.MethodGet, "/?history=1", nil)
	if st := srv.historyCache.Stats(); st.Hits == 0 {
		t.Fatalf("expected cache hit, stats %+v", st)
	}
}

func TestAPIMonth(t *testing.T) {
	srv, _, saver := newTestServer(t, nil, true)
	saver.status = services.SaveStatus{Pending: true}
	do(t, srv, http.MethodPost, "/expenses", url.Values{"title": {"Lunch"}, "amount": {"12.50"}, "category": {"Food"}})

	rr := do(t, srv, http.MethodGet, "/api/month", nil)
	var got struct {
		Month     string         `json:"month"`
		Remaining float64        `json:"remaining"`
		Expenses  []core.Expense `json:"expenses"`
		Saved     bool           `json:"saved"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Month != "Sep2025" || got.Remaining != 1987.5 || len(got.Expenses) != 1 || got.Saved {
		t.Fatalf("unexpected response %+v", got)
	}
	if got.Expenses[0].Note != "" {
		t.Fatalf("note = %q, want empty", got.Expenses[0].Note)
	}
}

func TestNotSavedIndicator(t *testing.T) {
	srv, _, saver := newTestServer(t, nil, true)
	saver.status = services.SaveStatus{Pending: true, LastError: "connection refused"}
	body := do(t, srv, http.MethodGet, "/", nil).Body.String()
	if !strings.Contains(body, "Not saved") || !strings.Contains(body, "connection refused") {
		t.Fatal("not-saved indicator missing")
	}
}

func TestOpsEndpoints(t *testing.T) {
	srv, store, _ := newTestServer(t, nil, false)

	if rr := do(t, srv, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before init = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("index before init = %d", rr.Code)
	}

	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz after init = %d", rr.Code)
	}

	rr := do(t, srv, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rr.Body.String(), "expenses_added_total 0") || !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Fatalf("metrics body: %s", rr.Body.String())
	}
}

func TestReadyReportsStoredAt(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := services.NewBudgetStore(repo, &stubSaver{}, services.StoreConfig{
		DefaultBudget: core.Cents(200000),
		Now:           func() time.Time { return sep2025 },
	}, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	srv, err := NewServer(":0", store, nil, Options{Storage: repo})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(ctx) })

	readSave := func() map[string]any {
		t.Helper()
		rr := do(t, srv, http.MethodGet, "/readyz", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("readyz status = %d", rr.Code)
		}
		var body struct {
			Save map[string]any `json:"save"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode readyz: %v", err)
		}
		return body.Save
	}

	if _, ok := readSave()["stored_at"]; ok {
		t.Fatal("stored_at reported before anything was written")
	}
	if err := repo.Save(ctx, core.Document{"Sep2025": core.NewMonthRecord(core.Cents(200000))}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	stored, _ := readSave()["stored_at"].(string)
	if _, err := time.Parse(time.RFC3339, stored); err != nil {
		t.Fatalf("stored_at = %q: %v", stored, err)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, true)
	rr := do(t, srv, http.MethodGet, "/static/style.css", nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("status=%d cache-control=%q", rr.Code, rr.Header().Get("Cache-Control"))
	}
}
