package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/log"
)

// Snapshot is a point-in-time copy of the document handed to the Persister.
type Snapshot struct {
	Document core.Document
	Revision uint64
	Month    core.MonthKey
}

// SaveStatus describes the durability of the in-memory state.
type SaveStatus struct {
	Pending      bool
	LastError    string
	LastSavedAt  time.Time
	LastSavedRev uint64
	Failures     int
	Saves        int
}

// Saved reports whether everything applied in memory has reached storage.
func (s SaveStatus) Saved() bool { return !s.Pending && s.LastError == "" }

// Notifier is told about every successful save.
type Notifier interface {
	BudgetChanged(ctx context.Context, revision uint64, month core.MonthKey) error
}

// PersisterConfig holds configuration for the persister
type PersisterConfig struct {
	// SaveTimeout bounds a single write to the gateway (default: 5s)
	SaveTimeout time.Duration

	// RetrySchedule is the cron spec used to retry failed saves (default: @every 30s)
	RetrySchedule string
}

func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		SaveTimeout:   5 * time.Second,
		RetrySchedule: "@every 30s",
	}
}

// Persister writes the latest submitted snapshot in the background. Newer
// snapshots replace older unsaved ones, so at most one write is queued.
// A failed snapshot stays pending until a retry or a newer snapshot succeeds.
type Persister struct {
	gw       gateway.Gateway
	notifier Notifier
	config   PersisterConfig
	logger   *log.Logger

	saveMu sync.Mutex // serialises writes to the gateway

	mu      sync.Mutex
	pending *Snapshot
	status  SaveStatus
	running bool
	wake    chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	cron    *cron.Cron
}

func NewPersister(gw gateway.Gateway, notifier Notifier, config PersisterConfig, logger *log.Logger) *Persister {
	def := DefaultPersisterConfig()
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = def.SaveTimeout
	}
	if config.RetrySchedule == "" {
		config.RetrySchedule = def.RetrySchedule
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Persister{
		gw:       gw,
		notifier: notifier,
		config:   config,
		logger:   logger.WithComponent(log.ComponentPersister),
		wake:     make(chan struct{}, 1),
	}
}

// Submit queues snap for saving. Snapshots older than the queued one are dropped.
func (p *Persister) Submit(snap Snapshot) {
	p.mu.Lock()
	if p.pending == nil || snap.Revision >= p.pending.Revision {
		p.pending = &snap
	}
	p.status.Pending = true
	p.mu.Unlock()
	p.signal()
}

// Status implements Saver.
func (p *Persister) Status() SaveStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Start launches the save loop and the retry schedule. Returns an error if already running.
func (p *Persister) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("persister is already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(p.config.RetrySchedule, p.retry); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("schedule save retry: %w", err)
	}
	p.cron = c
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	c.Start()
	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Persister started",
		"save_timeout", p.config.SaveTimeout,
		"retry_schedule", p.config.RetrySchedule)
	return nil
}

// Stop halts the loop and retry schedule, then writes whatever is still pending.
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return p.Flush(ctx)
	}
	p.running = false
	close(p.stopCh)
	c := p.cron
	p.mu.Unlock()

	<-c.Stop().Done()
	select {
	case <-p.doneCh:
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Persister stop timed out")
		return ctx.Err()
	}
	if err := p.Flush(ctx); err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "Persister stopped", log.FieldOperation, log.OpShutdown)
	return nil
}

// Flush writes the pending snapshot, if any, and returns the outcome.
func (p *Persister) Flush(ctx context.Context) error {
	return p.saveOnce(ctx)
}

func (p *Persister) runLoop(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-p.wake:
			_ = p.saveOnce(ctx)
		}
	}
}

// retry re-submits a pending snapshot whose last attempt failed.
func (p *Persister) retry() {
	p.mu.Lock()
	failed := p.pending != nil && p.status.LastError != ""
	p.mu.Unlock()
	if failed {
		p.logger.Info("Retrying failed save")
		p.signal()
	}
}

func (p *Persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Persister) saveOnce(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	p.mu.Unlock()
	if snap == nil {
		return nil
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.SaveTimeout)
	err := p.gw.Save(saveCtx, snap.Document)
	cancel()

	p.mu.Lock()
	if err != nil {
		if p.pending == nil {
			p.pending = snap
		}
		p.status.Pending = true
		p.status.LastError = err.Error()
		p.status.Failures++
		p.mu.Unlock()

		errType := log.ErrorTypeStorage
		if errors.Is(err, context.DeadlineExceeded) {
			errType = log.ErrorTypeTimeout
		}
		p.logger.ErrorContext(ctx, "Failed to save budget document, will retry",
			log.FieldError, err.Error(), log.FieldErrorType, errType,
			log.FieldRevision, snap.Revision, log.FieldOperation, log.OpSave)
		return fmt.Errorf("save revision %d: %w", snap.Revision, err)
	}
	p.status.Pending = p.pending != nil
	p.status.LastError = ""
	p.status.LastSavedAt = time.Now()
	p.status.LastSavedRev = snap.Revision
	p.status.Saves++
	p.mu.Unlock()

	p.logger.DebugContext(ctx, "Budget document saved", log.FieldRevision, snap.Revision, log.FieldMonth, string(snap.Month))

	if p.notifier != nil {
		if nerr := p.notifier.BudgetChanged(ctx, snap.Revision, snap.Month); nerr != nil {
			// The save itself succeeded; a lost notification only delays the export.
			p.logger.WarnContext(ctx, "Failed to publish budget change", log.FieldError, nerr.Error(), log.FieldRevision, snap.Revision)
		}
	}
	return nil
}
