// Package server is the inbound HTTP shell: it hands webhook payloads to the
// router and serves health, info, and metrics endpoints. No business logic
// lives here.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subkeeper/subkeeper/internal/transport"
)

const version = "1.0.0"

// Server wires the HTTP surface to the event pipeline.
type Server struct {
	decode      func([]byte) (transport.Event, error)
	dispatch    func(context.Context, transport.Event)
	webhookInfo func() (any, error)
	gatherer    prometheus.Gatherer
	environment string
	started     time.Time
}

// New creates the HTTP shell.
//
// decode turns a raw webhook body into an inbound event (nil for updates with
// no routable content); dispatch runs it through the router; webhookInfo
// backs the debug endpoint.
func New(
	decode func([]byte) (transport.Event, error),
	dispatch func(context.Context, transport.Event),
	webhookInfo func() (any, error),
	gatherer prometheus.Gatherer,
	environment string,
) *Server {
	return &Server{
		decode:      decode,
		dispatch:    dispatch,
		webhookInfo: webhookInfo,
		gatherer:    gatherer,
		environment: environment,
		started:     time.Now(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /webhook-info", s.handleWebhookInfo)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return loggingMiddleware(mux)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	ev, err := s.decode(body)
	if err != nil {
		slog.Warn("undecodable webhook payload", "error", err)
		http.Error(w, "bad update payload", http.StatusBadRequest)
		return
	}
	if ev != nil {
		s.dispatch(r.Context(), ev)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "OK",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"environment":    s.environment,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "subkeeper is running!",
		"status":  "active",
		"version": version,
	})
}

func (s *Server) handleWebhookInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := s.webhookInfo()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// loggingMiddleware logs all incoming requests with a correlation id.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		next.ServeHTTP(w, r)

		slog.Info("request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
