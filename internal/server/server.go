// Package server exposes the routine catalog over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/markb/routinecat/internal/log"
	"github.com/markb/routinecat/internal/observability"
	"github.com/markb/routinecat/internal/scan"
	"github.com/markb/routinecat/internal/store"
	"golang.org/x/crypto/acme/autocert"
)

type Server struct {
	store     *store.Store
	catalog   *scan.Catalog
	telemetry *observability.Telemetry
	router    *chi.Mux

	// HTTP server for graceful shutdown
	httpServer *http.Server

	// HTTPS fields
	httpsServer  *http.Server
	httpRedirect *http.Server
	autocertMgr  *autocert.Manager
}

// New creates a Server. tel may be nil.
func New(st *store.Store, cat *scan.Catalog, tel *observability.Telemetry) *Server {
	if tel == nil {
		tel, _ = observability.FromProviders(nil, nil)
	}
	s := &Server{
		store:     st,
		catalog:   cat,
		telemetry: tel,
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// CORS middleware for browser-based apps
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{log.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(observability.HTTPMiddleware(s.telemetry, "routinecat/http"))
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/logs", s.handleLogs)
		r.Get("/schemas", s.handleListSchemas)

		r.Route("/schemas/{schema}", func(r chi.Router) {
			r.Post("/refresh", s.handleRefreshContainer)
			r.Get("/routines", s.handleListRoutines)

			r.Route("/routines/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetRoutine)
				r.Get("/parameters", s.handleGetParameters)
				r.Get("/definition", s.handleGetDefinition)
				r.Post("/refresh", s.handleRefreshRoutine)
			})
		})
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "healthy"}
	if v, err := s.store.Version(r.Context()); err == nil {
		resp["catalog_version"] = v.String()
	}
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server(s).
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpsServer != nil {
		if err := s.httpsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTPS server: %w", err))
		}
	}

	if s.httpRedirect != nil {
		if err := s.httpRedirect.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP redirect server: %w", err))
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
