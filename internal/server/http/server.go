// Package httpserver provides the HTTP REST API server for the recruitment service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/trialkit/recruitment-service/internal/database"
	"github.com/trialkit/recruitment-service/internal/engine"
)

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	engine     *engine.Engine
	sim        engine.Simulator
	db         *database.DB
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server. sim may be nil, in which case the
// simulation routes are not mounted. db may be nil when running on the
// in-memory store.
func NewServer(cfg Config, eng *engine.Engine, sim engine.Simulator, db *database.DB, logger zerolog.Logger) *Server {
	s := &Server{
		engine:   eng,
		sim:      sim,
		db:       db,
		validate: validator.New(),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Get("/api/v1/studies", s.listStudies)

	r.Route("/api/v1/studies/{studyID}", func(r chi.Router) {
		r.Use(studyContextMiddleware)

		r.Post("/recruitment", s.initializeStudy)
		r.Get("/recruitment", s.getRecruitmentState)
		r.Post("/recruitment/go-live", s.goLive)
		r.Post("/recruitment/open-window", s.openWindow)
		r.Post("/recruitment/close-window", s.closeWindow)

		r.Get("/waitlist-stats", s.getWaitlistStats)

		r.Post("/cohorts/current/tracking", s.enterTrackingCode)
		r.Get("/cohorts/{cohortID}/participants", s.getCohortParticipants)
		r.Get("/cohorts/{cohortID}/manifest.csv", s.exportManifest)
		r.Post("/cohorts/{cohortID}/participants/{participantID}/address", s.updateAddress)
		r.Post("/cohorts/{cohortID}/participants/{participantID}/delivered", s.markDelivered)
	})

	// Simulation routes are mounted only when a simulator is configured.
	if s.sim != nil {
		r.Route("/api/v1/sim", func(r chi.Router) {
			r.Post("/reset", s.resetStore)
			r.Route("/studies/{studyID}", func(r chi.Router) {
				r.Use(studyContextMiddleware)
				r.Post("/enrollment", s.simulateEnrollment)
				r.Post("/waitlist-growth", s.simulateWaitlistGrowth)
			})
		})
	}

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "memory"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler reports whether the service can accept commands.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "store": "memory"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
