package memory

import (
	"context"
	"sync"

	"budget/internal/core"
	"budget/internal/gateway"
)

// Store keeps the document in process memory. Contents are lost on restart.
type Store struct {
	mu    sync.Mutex
	doc   core.Document
	saves int
}

func New() *Store { return &Store{} }

// NewWithDocument returns a store that already holds doc.
func NewWithDocument(doc core.Document) *Store {
	return &Store{doc: doc.Clone()}
}

func (s *Store) Load(_ context.Context) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, gateway.ErrNotFound
	}
	return s.doc.Clone(), nil
}

func (s *Store) Save(ctx context.Context, doc core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
