// SPDX-License-Identifier: MIT

// Package api exposes the HTTP surface: health probes, Prometheus metrics,
// the upload side-channel and the WebSocket relay endpoint.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocel-tools/ocelbridge/internal/api/middleware"
	"github.com/ocel-tools/ocelbridge/internal/config"
	"github.com/ocel-tools/ocelbridge/internal/relay"
	"github.com/ocel-tools/ocelbridge/internal/storage"
)

// Server wires the router to its collaborators. The relay dispatcher owns
// all session logic; the server only adapts transports.
type Server struct {
	cfg        config.AppConfig
	store      storage.BlobStore
	registry   *relay.Registry
	dispatcher *relay.Dispatcher
}

func NewServer(cfg config.AppConfig, store storage.BlobStore, registry *relay.Registry, dispatcher *relay.Dispatcher) *Server {
	return &Server{cfg: cfg, store: store, registry: registry, dispatcher: dispatcher}
}

// Router builds the chi router with the canonical middleware stack.
func (s *Server) Router() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  true,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/cloudflare", func(r chi.Router) {
		r.With(middleware.UploadRateLimit(s.cfg.UploadRateRPM)).
			Post("/upload", s.handleUpload)
	})

	r.Get("/celonis/ws", s.handleWS)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz verifies the blob store answers before reporting ready.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"detail": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
