// Package server implements the HTTP server that exposes the retrieval
// pipeline via a REST API: POST /api/answer for questions, POST /api/ingest
// for pushing documents, plus health, readiness, and Prometheus metrics
// endpoints. The server is started by the `ragline serve` CLI command.
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kvasir-ai/ragline/internal/history"
	"github.com/kvasir-ai/ragline/internal/logging"
	"github.com/kvasir-ai/ragline/internal/rag"
)

// New constructs a Server from the provided pipelines and config.
// The ingester may be nil; POST /api/ingest then returns 503.
func New(ans answerer, ing ingester, cfg *Config) (*Server, error) {
	if ans == nil {
		return nil, fmt.Errorf("server: answer pipeline must not be nil")
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
		// WriteTimeout covers the full retrieval and completion chain.
		cfg.WriteTimeout = 5 * time.Minute
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
	if cfg.DefaultTopK == 0 {
		cfg.DefaultTopK = 5
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		answerer: ans,
		ingester: ing,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: RAGLINE_API_KEY not set, API authentication disabled")
	}

	// Protected routes: auth then rate limit, instrumented per handler.
	api := http.NewServeMux()
	api.Handle("POST /api/answer", s.instrument("answer", http.HandlerFunc(s.handleAnswer)))
	api.Handle("POST /api/ingest", s.instrument("ingest", http.HandlerFunc(s.handleIngest)))
	protected := authMiddleware(cfg.APIKey, rl.middleware(api))

	mux := http.NewServeMux()
	mux.Handle("/api/", protected)
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

// Handler returns the fully assembled HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAnswer handles POST /api/answer. It runs the question through the
// retrieval pipeline and returns the answer with its supporting matches.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.DefaultTopK
	}

	result, err := s.answerer.Answer(r.Context(), &rag.AnswerRequest{
		Question: req.Question,
		TopK:     req.TopK,
		Filter:   rag.Filter(req.Filter),
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, rag.ErrTimeout) {
			outcome = "timeout"
		}
		s.metrics.answerRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.answerDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		log.Error("answer failed", slog.Any("error", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	s.metrics.answerRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.answerDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	s.recordHistory(r.Context(), result)

	resp := answerResponse{
		Question: result.Question,
		Answer:   result.AnswerText,
		Matches:  make([]answerMatch, 0, len(result.Matches)),
	}
	for _, m := range result.Matches {
		resp.Matches = append(resp.Matches, answerMatch{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("answer encode error", slog.Any("error", err))
	}
}

// handleIngest handles POST /api/ingest. It chunks, embeds, and upserts the
// submitted documents and returns the ingestion report.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.ingester == nil {
		http.Error(w, "ingestion not configured", http.StatusServiceUnavailable)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		http.Error(w, "documents are required", http.StatusBadRequest)
		return
	}

	docs := make([]rag.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, rag.Document{Source: d.Source, Text: d.Text, Metadata: d.Metadata})
	}

	report, err := s.ingester.Ingest(r.Context(), docs)
	if err != nil {
		s.metrics.ingestRunsTotal.WithLabelValues("error").Inc()
		log.Error("ingest failed", slog.Any("error", err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	s.metrics.ingestRunsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestDocumentsTotal.Add(float64(report.DocumentsRead))
	s.metrics.ingestRecordsTotal.Add(float64(report.RecordsUpserted))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Error("ingest encode error", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// recordHistory appends a successful answer to the query log, if configured.
// Failures are logged and swallowed; history must never break a response.
func (s *Server) recordHistory(ctx context.Context, result *rag.AnswerResult) {
	if s.cfg.History == nil {
		return
	}
	sources := make([]string, 0, len(result.Matches))
	seen := make(map[string]bool, len(result.Matches))
	for _, m := range result.Matches {
		src := m.Metadata["source"]
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	err := s.cfg.History.Append(ctx, history.Entry{
		Collection: s.cfg.Collection,
		Question:   result.Question,
		Answer:     result.AnswerText,
		Sources:    sources,
	})
	if err != nil {
		s.log.Warn("history append failed", slog.Any("error", err))
	}
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrInvalidInput), errors.Is(err, rag.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, rag.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrProviderUnavailable), errors.Is(err, rag.ErrStoreUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
