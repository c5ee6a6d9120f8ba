// Package server implements the HTTP server that exposes the retrieval
// pipeline via a REST API, plus health, readiness, and Prometheus metrics
// endpoints. The server is started by the `fathom serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/logging"
	"github.com/fathom-ai/fathom-go/internal/retrieval"
)

// New constructs a Server over the given pipeline and store.
func New(pipeline *retrieval.Pipeline, store docstore.Store, cfg *Config) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		searcher: pipeline,
		store:    store,
		vectors:  cfg.Vectors,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: API key not set — authentication disabled")
	}

	// protected wraps an API handler with auth, rate limiting, and per-handler
	// metrics, innermost first.
	protected := func(name string, h http.Handler) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", protected("search", http.HandlerFunc(s.handleSearch)))
	mux.Handle("GET /api/documents", protected("documents", http.HandlerFunc(s.handleDocuments)))
	mux.Handle("DELETE /api/documents/{id}", protected("document_delete", http.HandlerFunc(s.handleDocumentDelete)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSearch handles POST /api/search. The pipeline degrades internally on
// expansion, dense, or rerank failures, so an error here means the document
// store itself failed and a 500 is the honest answer.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.searchRequestsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.metrics.searchRequestsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := s.searcher.Search(r.Context(), req.Query)
	if err != nil {
		outcome := "error"
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
			status = http.StatusGatewayTimeout
		}
		s.metrics.searchRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.searchDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

		log := logging.FromContext(r.Context())
		log.Error("search failed", slog.Any("error", err))
		writeError(w, status, "search failed")
		return
	}

	s.metrics.searchRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.searchDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

// handleDocuments handles GET /api/documents.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListDocuments(r.Context())
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error("list documents failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "listing documents failed")
		return
	}
	if infos == nil {
		infos = []docstore.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: infos})
}

// handleDocumentDelete handles DELETE /api/documents/{id}. Child vectors are
// evicted from the vector index along with the store rows — the vector index
// is durable, unlike the lexical index, which is rebuilt from the store at
// startup and sheds its stale entries on the next restart.
func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	childIDs, err := s.store.DeleteDocument(r.Context(), id)
	if err != nil {
		log := logging.FromContext(r.Context())
		log.Error("delete document failed", slog.String("document_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "deleting document failed")
		return
	}
	if s.vectors != nil && len(childIDs) > 0 {
		if err := s.vectors.Delete(r.Context(), childIDs); err != nil {
			log := logging.FromContext(r.Context())
			log.Error("evict vectors failed",
				slog.String("document_id", id),
				slog.Int("children", len(childIDs)),
				slog.Any("error", err),
			)
			writeError(w, http.StatusInternalServerError, "deleting document failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed_children": len(childIDs)})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
