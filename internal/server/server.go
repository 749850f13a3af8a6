// Package server provides the HTTP API for HoldIQ: manager snapshots,
// position deltas, briefs, subscriber management and job triggers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/database"
	"github.com/holdiq/holdiq/internal/modules/briefs"
	"github.com/holdiq/holdiq/internal/modules/delta"
	"github.com/holdiq/holdiq/internal/modules/filings"
	"github.com/holdiq/holdiq/internal/modules/subscribers"
	"github.com/holdiq/holdiq/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	DB              *database.DB
	Port            int
	DevMode         bool
	FilingsRepo     *filings.Repository
	DeltaRepo       *delta.Repository
	DeltaService    *delta.Service
	SubscribersRepo *subscribers.Repository
	BriefsRepo      *briefs.Repository
	SnapshotBuilder *briefs.SnapshotBuilder
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	db             *database.DB
	filings        *filings.Repository
	deltas         *delta.Repository
	deltaSvc       *delta.Service
	subs           *subscribers.Repository
	briefs         *briefs.Repository
	snapshots      *briefs.SnapshotBuilder
	systemHandlers *SystemHandlers
	jobs           map[string]scheduler.Job
	runner         *scheduler.Scheduler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		db:        cfg.DB,
		filings:   cfg.FilingsRepo,
		deltas:    cfg.DeltaRepo,
		deltaSvc:  cfg.DeltaService,
		subs:      cfg.SubscribersRepo,
		briefs:    cfg.BriefsRepo,
		snapshots: cfg.SnapshotBuilder,
		jobs:      make(map[string]scheduler.Job),
	}

	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.DB, cfg.FilingsRepo)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job instances for manual triggering via the API.
// The runner executes them outside their cron schedules.
func (s *Server) SetJobs(runner *scheduler.Scheduler, jobs ...scheduler.Job) {
	s.runner = runner
	for _, job := range jobs {
		s.jobs[job.Name()] = job
	}
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
		})

		r.Route("/filings", func(r chi.Router) {
			r.Get("/recent", s.handleRecentFilings)
		})

		r.Route("/managers/{cik}", func(r chi.Router) {
			r.Get("/snapshot", s.handleManagerSnapshot)
			r.Get("/deltas", s.handleManagerDeltas)
			r.Post("/deltas/rebuild", s.handleRebuildManagerDeltas)
			r.Get("/brief", s.handleManagerBrief)
		})

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", s.handleListSubscribers)
			r.Post("/", s.handleUpsertSubscriber)
			r.Delete("/", s.handleDeactivateSubscriber)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/{name}", s.handleTriggerJob)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
