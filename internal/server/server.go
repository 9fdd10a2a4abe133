// Package server is the HTTP transport: chi router wiring, one
// handler+routes pair per resource, CORS, and the two health endpoints
// (spec §6). This layer is explicitly "thin plumbing" per spec §1 —
// handlers decode the request, call into a component, and map its
// typed error to a status code.
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
)

// Config configures the HTTP server's lifecycle, following the
// teacher's server-config-struct + http.Server pattern
// (internal/server/server.go).
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server owns the http.Server and the chi router.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds a Server with CORS and every resource's routes mounted.
func New(cfg Config, log zerolog.Logger, deps Dependencies) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	NewHealthHandler(deps.DB).RegisterRoutes(r)
	NewImportsHandler(deps, log).RegisterRoutes(r)
	NewStockPricesHandler(deps, log).RegisterRoutes(r)
	NewBacktestHandler(deps, log).RegisterRoutes(r)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		log: log.With().Str("component", "server").Logger(),
	}
}

// Start runs the HTTP server until Shutdown is called. Intended to be
// run in its own goroutine by main, mirroring `go srv.Start()`.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
