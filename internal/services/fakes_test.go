package services

import (
	"context"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/log"
)

// fakeGateway records every save and can be told to fail.
type fakeGateway struct {
	mu      sync.Mutex
	doc     core.Document
	loadErr error
	saveErr error
	saves   []core.Document
}

func (g *fakeGateway) Load(context.Context) (core.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	if g.doc == nil {
		return nil, gateway.ErrNotFound
	}
	return g.doc.Clone(), nil
}

func (g *fakeGateway) Save(_ context.Context, doc core.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.doc = doc.Clone()
	g.saves = append(g.saves, doc.Clone())
	return nil
}

func (g *fakeGateway) setSaveErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveErr = err
}

func (g *fakeGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.saves)
}

func (g *fakeGateway) lastSaved() core.Document {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.saves) == 0 {
		return nil
	}
	return g.saves[len(g.saves)-1]
}

type fakeNotifier struct {
	mu        sync.Mutex
	revisions []uint64
	err       error
}

func (n *fakeNotifier) BudgetChanged(_ context.Context, rev uint64, _ core.MonthKey) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revisions = append(n.revisions, rev)
	return n.err
}

func (n *fakeNotifier) calls() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.revisions...)
}

var sep2025 = time.Date(2025, time.September, 17, 12, 0, 0, 0, time.UTC)

// newTestStore returns a store over gw whose persister is not started, so
// tests decide when saves happen by calling Flush.
func newTestStore(gw gateway.Gateway) (*BudgetStore, *Persister) {
	p := NewPersister(gw, nil, DefaultPersisterConfig(), log.Discard())
	ids := 0
	s := NewBudgetStore(gw, p, StoreConfig{
		DefaultBudget: core.Cents(200000),
		Categories:    core.NewCategorySet(core.DefaultCategories...),
		Now:           func() time.Time { return sep2025 },
		NewID: func() core.ExpenseID {
			ids++
			return core.ExpenseID("id-" + string(rune('a'+ids-1)))
		},
	}, log.Discard())
	return s, p
}
