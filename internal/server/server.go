// Package server provides the HTTP server and routing for Pulse.
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

	"github.com/relaycrm/pulse/internal/config"
	"github.com/relaycrm/pulse/internal/database"
	"github.com/relaycrm/pulse/internal/di"
	accounthandlers "github.com/relaycrm/pulse/internal/modules/accounts/handlers"
	scorehandlers "github.com/relaycrm/pulse/internal/modules/scores/handlers"
	scoringhandlers "github.com/relaycrm/pulse/internal/modules/scoring/handlers"
	signalhandlers "github.com/relaycrm/pulse/internal/modules/signals/handlers"
)

// Config holds server configuration - 4-database architecture
type Config struct {
	Log       zerolog.Logger
	SignalsDB *database.DB
	ScoresDB  *database.DB
	ConfigDB  *database.DB
	HistoryDB *database.DB
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.SignalsDB,
		cfg.ScoresDB,
		cfg.ConfigDB,
		cfg.HistoryDB,
		cfg.Container.Scheduler,
		cfg.Container.S3BackupService,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Org-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check and Prometheus metrics, outside auth
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.container.Metrics.Handler())

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Every API request resolves its organization first
		r.Use(s.container.Verifier.Middleware)

		// Live event stream (websocket). Registered outside the request
		// timeout group so connections can outlive the 60s budget that
		// ordinary requests get.
		streamHandler := NewStreamHandler(s.container.EventBus, s.container.Metrics, s.log)
		r.Get("/events/ws", streamHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			// Timeout
			r.Use(middleware.Timeout(60 * time.Second))

			// System monitoring and operations
			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/jobs", s.systemHandlers.HandleJobsStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
				r.Get("/backups", s.systemHandlers.HandleListBackups)
			})

			// Signals module
			signalHandler := signalhandlers.NewHandler(s.container.SignalService, s.log)
			signalHandler.RegisterRoutes(r)

			// Accounts module
			accountHandler := accounthandlers.NewHandler(s.container.AccountRepo, s.container.EventBus, s.log)
			accountHandler.RegisterRoutes(r)

			// Scores module
			scoreHandler := scorehandlers.NewHandler(s.container.ComputeService, s.log)
			scoreHandler.RegisterRoutes(r)

			// Scoring config and recompute module
			scoringHandler := scoringhandlers.NewHandler(s.container.ScoringService, s.log)
			scoringHandler.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests and feeds the request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		// The chi route context is populated during routing, so the matched
		// pattern is available once the handler returns
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.container.Metrics.HTTPRequest(route, ww.Status(), duration)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
