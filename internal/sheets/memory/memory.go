package memory

import (
	"context"
	"sync"

	"budget/internal/core"
)

// Store is an in-process HistoryWriter, used when no spreadsheet is configured.
type Store struct {
	mu         sync.Mutex
	rows       []core.MonthSummary
	categories []core.Category
	writes     int
}

func New() *Store { return &Store{} }

func (s *Store) WriteHistory(_ context.Context, rows []core.MonthSummary, categories []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append([]core.MonthSummary(nil), rows...)
	s.categories = append([]core.Category(nil), categories...)
	s.writes++
	return nil
}

// Rows returns the last exported rows.
func (s *Store) Rows() []core.MonthSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MonthSummary(nil), s.rows...)
}

// Writes counts WriteHistory calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
