package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/gateway"
)

var _ gateway.Gateway = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "budget.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Load(ctx); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.UpdatedAt(ctx); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from UpdatedAt, got %v", err)
	}

	first := core.Document{"Sep2025": core.NewMonthRecord(core.Cents(200000))}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := core.Document{"Sep2025": {Budget: core.Cents(50050), Expenses: []core.Expense{
		{ID: "a", Title: "Coffee", Amount: core.Cents(450), Category: core.Food},
	}}}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["Sep2025"].Budget != core.Cents(50050) || len(got["Sep2025"].Expenses) != 1 {
		t.Fatalf("second save did not replace the first: %+v", got)
	}

	ts, err := repo.UpdatedAt(ctx)
	if err != nil {
		t.Fatalf("UpdatedAt: %v", err)
	}
	if time.Since(ts) > time.Minute {
		t.Fatalf("UpdatedAt too old: %v", ts)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
