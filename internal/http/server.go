package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
	appweb "budget/web"
)

// BudgetService is the part of the budget store the web layer drives.
type BudgetService interface {
	Ready() bool
	CurrentMonth() core.Month
	Categories() core.CategorySet
	Revision() uint64
	SaveStatus() services.SaveStatus

	AddExpense(ctx context.Context, key core.MonthKey, in services.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, key core.MonthKey, id core.ExpenseID) error
	SetBudget(ctx context.Context, key core.MonthKey, raw string) error

	Month(key core.MonthKey) (core.MonthRecord, error)
	History() ([]core.MonthSummary, error)
}

// DocumentClock is implemented by storage that records when the document
// was last written.
type DocumentClock interface {
	UpdatedAt(ctx context.Context) (time.Time, error)
}

// Options tunes the server; zero values select defaults.
type Options struct {
	RateLimit       ratelimit.Config
	HistoryCacheTTL time.Duration
	CacheCleanup    time.Duration
	// Storage adds stored_at to /readyz when set.
	Storage DocumentClock
}

type Server struct {
	http.Server
	store     BudgetService
	storage   DocumentClock
	templates *template.Template
	logger    *log.Logger

	clientIP    *security.ClientIP
	rateLimiter *ratelimit.Limiter
	trace       *trace.Middleware

	// history views keyed by store revision
	historyCache *cache.LRUCache[uint64, []core.MonthSummary]
	cacheManager *cache.Manager

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	started         time.Time
	expensesAdded   atomic.Int64
	expensesDeleted atomic.Int64
	budgetUpdates   atomic.Int64
	rejected        atomic.Int64
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, store BudgetService, logger *log.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.HistoryCacheTTL <= 0 {
		opts.HistoryCacheTTL = 5 * time.Minute
	}
	if opts.CacheCleanup <= 0 {
		opts.CacheCleanup = 10 * time.Minute
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	s := &Server{
		store:        store,
		storage:      opts.Storage,
		templates:    t,
		logger:       logger.WithComponent(log.ComponentHTTP),
		clientIP:     security.NewClientIP(),
		rateLimiter:  ratelimit.NewLimiter(opts.RateLimit),
		historyCache: cache.NewLRUCache[uint64, []core.MonthSummary](16, opts.HistoryCacheTTL),
		cacheManager: cache.NewManager(logger),
	}
	s.metrics.started = time.Now()
	s.trace = trace.NewMiddleware(logger, s.clientIP.Extract)
	s.cacheManager.Register(s.historyCache)
	s.cacheManager.StartCleanup(opts.CacheCleanup)

	r := chi.NewRouter()
	r.Use(s.trace.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.rateLimiter.Middleware(s.clientIP.Extract, s.handleRateLimited))

	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/", s.handleIndex)
	r.Post("/expenses", s.handleAddExpense)
	r.Post("/expenses/{id}/delete", s.handleDeleteExpense)
	r.Post("/budget", s.handleSetBudget)
	r.Get("/history", s.handleHistory)

	r.Route("/api", func(r chi.Router) {
		r.Get("/month", s.handleAPIMonth)
		r.Get("/history", s.handleAPIHistory)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops background cleanup and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	http.Error(w, "Too many changes, please wait a minute.", http.StatusTooManyRequests)
}

// history returns the history view for the current revision, computing it at most once per revision.
func (s *Server) history(ctx context.Context) ([]core.MonthSummary, error) {
	rev := s.store.Revision()
	if rows, ok := s.historyCache.Get(rev); ok {
		return rows, nil
	}
	rows, err := s.store.History()
	if err != nil {
		return nil, err
	}
	if s.store.Revision() == rev {
		s.historyCache.Set(rev, rows)
		log.FromContext(ctx).DebugContext(ctx, "History view cached", log.FieldRevision, rev, "months", len(rows))
	}
	return rows, nil
}
