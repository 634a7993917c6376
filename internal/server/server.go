// Package server provides the HTTP server and routing for ballast.
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

	"github.com/jtallis/ballast/internal/database"
	"github.com/jtallis/ballast/internal/events"
	strategyhandlers "github.com/jtallis/ballast/internal/modules/strategies/handlers"
)

// Config holds server wiring.
type Config struct {
	Log             zerolog.Logger
	Port            int
	DataDir         string
	Databases       map[string]*database.DB
	EventBus        *events.Bus
	StrategyHandler *strategyhandlers.Handler
	Runner          StatsReporter
}

// Server is the HTTP front of the service.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	databases      map[string]*database.DB
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
	strategies     *strategyhandlers.Handler
}

// New assembles the router, middleware and handlers.
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		databases:      cfg.Databases,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.DataDir, cfg.Databases, cfg.Runner),
		eventsStream:   NewEventsStreamHandler(cfg.EventBus, cfg.Log),
		strategies:     cfg.StrategyHandler,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the SSE stream outlives any fixed deadline.
		// Regular API routes are bounded by the timeout middleware.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures the global middleware chain.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// The event stream is long-lived and stays outside the timeout
		// group.
		r.Get("/events/stream", s.eventsStream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/disk", s.systemHandlers.HandleDiskUsage)
			})

			if s.strategies != nil {
				s.strategies.RegisterRoutes(r)
			}
		})
	})
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
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
