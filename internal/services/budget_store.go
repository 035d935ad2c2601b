package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/log"
)

var (
	// ErrNotInitialized is returned by every store operation before Initialize has completed.
	ErrNotInitialized = errors.New("budget store not initialized")
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("budget store already initialized")
)

// Saver accepts snapshots of the document for durable storage.
type Saver interface {
	Submit(snap Snapshot)
	Status() SaveStatus
}

// ExpenseInput carries the raw form values of a new expense.
type ExpenseInput struct {
	Title    string
	Note     string
	Amount   string
	Category string
}

// StoreConfig holds the fixed parameters of a BudgetStore.
type StoreConfig struct {
	DefaultBudget core.Money
	Categories    core.CategorySet
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() core.ExpenseID
}

// BudgetStore holds every month of the budget in memory. Mutations apply
// immediately and hand a snapshot to the Saver; reads never touch storage.
type BudgetStore struct {
	gw     gateway.Gateway
	saver  Saver
	config StoreConfig
	logger *log.Logger

	mu       sync.RWMutex
	ready    bool
	doc      core.Document
	revision uint64
}

func NewBudgetStore(gw gateway.Gateway, saver Saver, config StoreConfig, logger *log.Logger) *BudgetStore {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.NewID == nil {
		config.NewID = func() core.ExpenseID { return core.ExpenseID(uuid.NewString()) }
	}
	if config.Categories.Len() == 0 {
		config.Categories = core.NewCategorySet(core.DefaultCategories...)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BudgetStore{
		gw:     gw,
		saver:  saver,
		config: config,
		logger: logger.WithComponent(log.ComponentStore),
	}
}

// Initialize loads the document and moves the store to Ready. A missing
// document is created and saved; a failed load falls back to an in-memory
// default that is not saved. Either way the current month is guaranteed.
func (s *BudgetStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return ErrAlreadyInitialized
	}

	current := s.currentKey()
	doc, err := s.gw.Load(ctx)
	persist := false
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		s.logger.InfoContext(ctx, "No budget document found, creating default",
			log.FieldMonth, string(current), log.FieldOperation, log.OpInit)
		doc = core.Document{}
		persist = true
	case err != nil:
		s.logger.ErrorContext(ctx, "Failed to load budget document, using in-memory default",
			log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeStorage, log.FieldOperation, log.OpLoad)
		doc = core.Document{current: core.NewMonthRecord(s.config.DefaultBudget)}
	default:
		if verr := doc.Validate(); verr != nil {
			s.logger.WarnContext(ctx, "Loaded budget document has inconsistencies", log.FieldError, verr.Error())
		}
		doc = doc.Clone()
	}

	if _, ok := doc[current]; !ok {
		doc[current] = core.NewMonthRecord(s.config.DefaultBudget)
		persist = true
	}

	s.doc = doc
	s.revision = 1
	s.ready = true
	if persist {
		s.submitLocked(current)
	}
	s.logger.InfoContext(ctx, "Budget store ready", log.FieldMonth, string(current), "months", len(doc))
	return nil
}

// Ready reports whether Initialize has completed.
func (s *BudgetStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// CurrentMonth is the calendar month of the store's clock.
func (s *BudgetStore) CurrentMonth() core.Month {
	return core.MonthOf(s.config.Now())
}

// Categories returns the closed category set.
func (s *BudgetStore) Categories() core.CategorySet {
	return s.config.Categories
}

// Revision increases on every applied mutation.
func (s *BudgetStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// SaveStatus reports the state of durable storage.
func (s *BudgetStore) SaveStatus() SaveStatus {
	if s.saver == nil {
		return SaveStatus{}
	}
	return s.saver.Status()
}

// EnsureCurrentMonth adds a record for the current month when the calendar
// has moved on since Initialize.
func (s *BudgetStore) EnsureCurrentMonth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}
	current := s.currentKey()
	if _, ok := s.doc[current]; ok {
		return nil
	}
	s.doc[current] = core.NewMonthRecord(s.config.DefaultBudget)
	s.revision++
	s.submitLocked(current)
	s.logger.InfoContext(ctx, "Started new month", log.FieldMonth, string(current))
	return nil
}

// AddExpense validates the raw input and appends a new expense to month key.
func (s *BudgetStore) AddExpense(ctx context.Context, key core.MonthKey, in ExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return core.Expense{}, ErrNotInitialized
	}

	if _, err := core.ParseMonthKey(key); err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Title:    strings.TrimSpace(in.Title),
		Note:     in.Note,
		Amount:   amount,
		Category: core.Category(strings.TrimSpace(in.Category)),
	}
	if err := e.Validate(s.config.Categories); err != nil {
		return core.Expense{}, err
	}

	rec := s.recordLocked(key).Clone()
	e.ID = s.config.NewID()
	for rec.IndexOf(e.ID) >= 0 {
		e.ID = s.config.NewID()
	}
	rec.Expenses = append(rec.Expenses, e)
	s.doc[key] = rec
	s.revision++
	s.submitLocked(key)

	log.NewStructuredLogger(s.logger).LogExpenseAdded(ctx, string(key), string(e.ID), e.Title, e.Amount.Cents, string(e.Category))
	return e, nil
}

// DeleteExpense removes the expense with the given id. Unknown ids and
// months are a no-op.
func (s *BudgetStore) DeleteExpense(ctx context.Context, key core.MonthKey, id core.ExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}

	rec, ok := s.doc[key]
	if !ok {
		return nil
	}
	i := rec.IndexOf(id)
	if i < 0 {
		s.logger.DebugContext(ctx, "Delete of unknown expense ignored", log.FieldMonth, string(key), log.FieldExpenseID, string(id))
		return nil
	}
	rec = rec.Clone()
	rec.Expenses = append(rec.Expenses[:i], rec.Expenses[i+1:]...)
	s.doc[key] = rec
	s.revision++
	s.submitLocked(key)

	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldMonth, string(key), log.FieldExpenseID, string(id), log.FieldOperation, log.OpDelete)
	return nil
}

// SetBudget replaces the budget of month key. raw must be a finite number greater than zero.
func (s *BudgetStore) SetBudget(ctx context.Context, key core.MonthKey, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotInitialized
	}

	if _, err := core.ParseMonthKey(key); err != nil {
		return err
	}
	amount, err := core.ParseAmount(raw)
	if err != nil || amount.Cents <= 0 {
		return core.ErrInvalidBudget
	}

	rec := s.recordLocked(key).Clone()
	rec.Budget = amount
	s.doc[key] = rec
	s.revision++
	s.submitLocked(key)

	s.logger.InfoContext(ctx, "Budget updated",
		log.FieldMonth, string(key), log.FieldBudgetCents, amount.Cents, log.FieldOperation, log.OpSetBudget)
	return nil
}

// Month returns a copy of the record for key. A well-formed key with no
// record yet yields an empty month with the default budget.
func (s *BudgetStore) Month(key core.MonthKey) (core.MonthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return core.MonthRecord{}, ErrNotInitialized
	}
	if rec, ok := s.doc[key]; ok {
		return rec.Clone(), nil
	}
	if _, err := core.ParseMonthKey(key); err != nil {
		return core.MonthRecord{}, err
	}
	return core.NewMonthRecord(s.config.DefaultBudget), nil
}

// Remaining is budget minus spent for key; negative when overspent.
func (s *BudgetStore) Remaining(key core.MonthKey) (core.Money, error) {
	rec, err := s.Month(key)
	if err != nil {
		return core.Money{}, err
	}
	return rec.Remaining(), nil
}

// CategoryTotals sums the month's expenses per category.
func (s *BudgetStore) CategoryTotals(key core.MonthKey) (map[core.Category]core.Money, error) {
	rec, err := s.Month(key)
	if err != nil {
		return nil, err
	}
	return rec.CategoryTotals(), nil
}

// History summarises every stored month, most recent first.
func (s *BudgetStore) History() ([]core.MonthSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotInitialized
	}
	return s.doc.History(), nil
}

// Snapshot returns a deep copy of the whole document together with its revision.
func (s *BudgetStore) Snapshot() (core.Document, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, 0, ErrNotInitialized
	}
	return s.doc.Clone(), s.revision, nil
}

func (s *BudgetStore) currentKey() core.MonthKey {
	return core.MonthOf(s.config.Now()).Key()
}

func (s *BudgetStore) recordLocked(key core.MonthKey) core.MonthRecord {
	if rec, ok := s.doc[key]; ok {
		return rec
	}
	return core.NewMonthRecord(s.config.DefaultBudget)
}

func (s *BudgetStore) submitLocked(key core.MonthKey) {
	if s.saver == nil {
		return
	}
	s.saver.Submit(Snapshot{Document: s.doc.Clone(), Revision: s.revision, Month: key})
}

