package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vincentbai/webhook-activity/internal/activity"
	"github.com/vincentbai/webhook-activity/internal/normalize"
)

// GitHub caps webhook payloads at 25 MB.
const maxPayloadBytes = 25 << 20

const (
	msgInvalidPayload   = "Invalid JSON payload."
	msgInvalidTimestamp = "Invalid timestamp format."
	msgPayloadTooLarge  = "Payload too large."
	msgStoreUnavailable = "Could not connect to store."
)

//go:embed static/index.html
var indexPage []byte

type Server struct {
	service       *activity.Service
	address       string
	allowedOrigin string
	logger        *slog.Logger
	server        *http.Server
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAllowedOrigin sets the Access-Control-Allow-Origin value. An empty
// origin disables CORS headers.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) { s.allowedOrigin = origin }
}

func NewServer(service *activity.Service, address string, opts ...Option) *Server {
	s := &Server{
		service:       service,
		address:       address,
		allowedOrigin: "*",
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ready(r.Context()); err != nil {
		s.logger.Warn("store not ready", "err", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}

// handleWebhook handles POST /webhook. Deliveries that produce no activity
// still answer success.
func (s *Server) handleWebhook(w http.ResponseWriter, request *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, request.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	eventType := request.Header.Get("X-GitHub-Event")
	delivery := request.Header.Get("X-GitHub-Delivery")
	if _, err := s.service.Ingest(request.Context(), eventType, delivery, body); err != nil {
		if errors.Is(err, normalize.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, msgInvalidPayload)
			return
		}
		s.logger.Error("failed to record webhook", "event", eventType, "delivery", delivery, "err", err)
		writeError(w, http.StatusInternalServerError, msgStoreUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleEvents handles GET /events?since=<ISO8601>.
func (s *Server) handleEvents(w http.ResponseWriter, request *http.Request) {
	recent, err := s.service.ListRecent(request.Context(), request.URL.Query().Get("since"))
	if err != nil {
		if errors.Is(err, activity.ErrInvalidTimestamp) {
			writeError(w, http.StatusBadRequest, msgInvalidTimestamp)
			return
		}
		s.logger.Error("failed to list events", "err", err)
		writeError(w, http.StatusInternalServerError, msgStoreUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.service.Metrics().Registry, promhttp.HandlerOpts{}))
	return mux
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.allowedOrigin, s.setupRoutes())
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("webhook activity server listening", "addr", listener.Addr().String())
		serveErr <- s.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}
	s.logger.Info("server exited")
	return nil
}

func corsMiddleware(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-GitHub-Event, X-GitHub-Delivery")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
