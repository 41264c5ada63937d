// Package web exposes the paneltrack core over a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/paneltrack/internal/config"
	"github.com/JonMunkholm/paneltrack/internal/core"
	webmw "github.com/JonMunkholm/paneltrack/internal/web/middleware"
)

// Server is the paneltrack HTTP server.
type Server struct {
	service *core.Service
	cfg     *config.Config
	actor   core.Actor
	router  *chi.Mux
	server  *http.Server
	limiter *webmw.RateLimiter

	// uploadDir holds snapshot and log files while they are downloaded.
	uploadDir string
}

// NewServer builds the router for service. actor is recorded in the system
// log when a request carries no X-Operator header.
func NewServer(service *core.Service, cfg *config.Config, actor core.Actor) *Server {
	s := &Server{
		service:   service,
		cfg:       cfg,
		actor:     actor,
		router:    chi.NewRouter(),
		uploadDir: os.TempDir(),
	}
	if cfg.Rate.Enabled {
		s.limiter = webmw.NewRateLimiter(cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(webmw.APIKeyAuth(&s.cfg.Security))
		r.Use(webmw.Actor(s.actor))
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}

		r.Get("/records", s.handleListRecords)
		r.Post("/records", s.handleCreateRecord)
		r.Put("/records/{id}", s.handleUpdateRecord)
		r.Delete("/records/{id}", s.handleDeleteRecord)

		r.Post("/import", s.handleImport)
		r.Get("/jobs/{id}", s.handleJobStatus)

		r.Get("/export/snapshot", s.handleDownloadSnapshot)

		r.Get("/logs", s.handleListLogs)
		r.Get("/logs/export", s.handleExportLogs)

		r.Group(func(r chi.Router) {
			r.Use(webmw.AdminKeyAuth(&s.cfg.Security))
			r.Post("/records/delete", s.handleDeleteBatch)
			r.Post("/export/xlsx", s.handleStartExport(core.ExportXLSX))
			r.Post("/export/snapshot", s.handleStartExport(core.ExportSnapshot))
			r.Delete("/logs", s.handleClearLogs)
		})
	})
}

// Start serves on the configured address until Shutdown. When rate
// limiting is on, idle buckets are evicted until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}
	if s.limiter != nil {
		go s.limiter.Cleanup(ctx)
	}

	slog.Info("server starting", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_jobs": s.service.Jobs.Active(),
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with status. Encoding errors are only logged since
// the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
