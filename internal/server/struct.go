package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kvasir-ai/ragline/internal/history"
	"github.com/kvasir-ai/ragline/internal/ingestion"
	"github.com/kvasir-ai/ragline/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// DefaultTopK is the match count used when a request omits top_k.
	// Defaults to 5 if zero.
	DefaultTopK int
	// Collection is the vector store collection name, recorded in history
	// entries. Informational only; the store is already bound to it.
	Collection string
	// History is an optional query log. When non-nil every successful answer
	// is appended to it. Append failures are logged, never surfaced.
	History history.QueryLog
}

// answerer is the interface handleAnswer calls to run a question through the
// retrieval pipeline. *rag.Pipeline satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, req *rag.AnswerRequest) (*rag.AnswerResult, error)
}

// ingester is the interface handleIngest calls to push documents into the
// vector store. *ingestion.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	Ingest(ctx context.Context, docs []rag.Document) (*ingestion.Report, error)
}

// Server is the HTTP server that exposes the retrieval pipeline.
type Server struct {
	// answerer runs questions through the retrieval pipeline.
	answerer answerer
	// ingester pushes documents into the vector store. May be nil, in which
	// case POST /api/ingest returns 503.
	ingester ingester
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments for this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// answerRequest is the JSON body for POST /api/answer.
type answerRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// TopK is the number of matches to retrieve. Defaults to the server's
	// DefaultTopK when zero or omitted.
	TopK int `json:"top_k,omitempty"`
	// Filter optionally restricts eligible records by metadata equality.
	Filter map[string]string `json:"filter,omitempty"`
}

// answerMatch is one retrieved match in an answerResponse.
type answerMatch struct {
	// ID is the record identifier.
	ID string `json:"id"`
	// Score is the similarity score, higher is better.
	Score float32 `json:"score"`
	// Metadata carries the record's metadata (source, ordinal, doc type).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// answerResponse is the JSON response for POST /api/answer.
type answerResponse struct {
	// Question is the original question, echoed back.
	Question string `json:"question"`
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Matches lists the retrieved context in descending score order.
	Matches []answerMatch `json:"matches"`
}

// ingestDocument is one document in an ingestRequest.
type ingestDocument struct {
	// Source identifies the document (path, URL, or logical name).
	Source string `json:"source"`
	// Text is the full document text.
	Text string `json:"text"`
	// Metadata is attached to every chunk produced from this document.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Documents are the documents to chunk, embed, and upsert.
	Documents []ingestDocument `json:"documents"`
}
