package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// Services are the application services the API exposes.
type Services struct {
	Transactions *services.TransactionService
	Recurring    *services.RecurringProcessor
	Overview     *services.OverviewService
	Budgets      *services.BudgetService
}

// Options tune the server around the routes.
type Options struct {
	AllowedOrigins []string
	Logger         *applog.Logger
	// Now is the clock used for request defaults; time.Now when nil.
	Now func() time.Time
}

type Server struct {
	http.Server
	svc         Services
	logger      *applog.Logger
	now         func() time.Time
	started     time.Time
	rateLimiter *rateLimiter
	detector    *detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		svc:         svc,
		logger:      logger,
		now:         now,
		started:     now(),
		rateLimiter: newRateLimiter(),
		detector:    &detector{},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)
	r.Use(s.detector.middleware)
	r.Use(s.rateLimiter.limitWrites)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/pending", s.handleListPending)
			r.Post("/{id}/confirm", s.handleConfirmTransaction)
			r.Post("/{id}/discard", s.handleDiscardTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})
		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", s.handleListRecurring)
			r.Post("/", s.handleCreateRecurring)
			r.Post("/process", s.handleProcessRecurring)
			r.Delete("/{id}", s.handleDeleteRecurring)
		})
		r.Get("/overview", s.handleOverview)
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleBudgetSummary)
			r.Put("/", s.handleConfigureBudgets)
			r.Get("/progress", s.handleBudgetProgress)
			r.Put("/{category}", s.handleSetBudgetLimit)
			r.Delete("/{category}", s.handleRemoveBudgetLimit)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
