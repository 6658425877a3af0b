package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/kvasir-ai/ragline/internal/chunk"
	"github.com/kvasir-ai/ragline/internal/embedder"
	"github.com/kvasir-ai/ragline/internal/ingestion"
	"github.com/kvasir-ai/ragline/internal/rag"
	"github.com/kvasir-ai/ragline/internal/vectorstore"
)

// getEnvOrDefault returns the env var value or fallback if unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback if unset or invalid.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// callTimeoutFromEnv reads RAG_CALL_TIMEOUT (seconds). Zero disables the
// per-call deadline.
func callTimeoutFromEnv() time.Duration {
	return time.Duration(getEnvInt("RAG_CALL_TIMEOUT", 0)) * time.Second
}

// metricFromEnv reads RAG_METRIC, defaulting to cosine similarity.
func metricFromEnv() (rag.Metric, error) {
	m := rag.Metric(getEnvOrDefault("RAG_METRIC", string(rag.MetricCosine)))
	if !rag.ValidMetric(m) {
		return "", fmt.Errorf("unsupported metric %q: %w", m, rag.ErrInvalidConfig)
	}
	return m, nil
}

// buildStore constructs the vector store from the environment and ensures
// the collection exists with the embedder's dimensionality.
func buildStore(ctx context.Context, log *slog.Logger) (rag.VectorStore, error) {
	store, err := vectorstore.NewFromEnv()
	if err != nil {
		return nil, err
	}

	dims := embedder.DefaultDimensions(embedder.Backend())
	metric, err := metricFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := store.EnsureCollection(ctx, dims, metric); err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("vector store ready",
		slog.String("backend", vectorstore.Backend()),
		slog.String("collection", vectorstore.Collection()),
		slog.Int("dimensions", dims),
		slog.String("metric", string(metric)),
	)
	return store, nil
}

// buildEmbedder runs the embedding preflight and constructs the embedder
// from the environment.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Preflight(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	log.Info("embedder initialised", slog.String("backend", embedder.Backend()))
	return emb, nil
}

// ingestionConfigFromEnv assembles the ingestion pipeline configuration from
// CHUNK_* and INGEST_CONCURRENCY env vars.
func ingestionConfigFromEnv() *ingestion.Config {
	return &ingestion.Config{
		Chunk: chunk.Config{
			MaxLength: getEnvInt("CHUNK_MAX_LENGTH", chunk.DefaultMaxLength),
			Overlap:   getEnvInt("CHUNK_OVERLAP", chunk.DefaultOverlap),
			MinWords:  getEnvInt("CHUNK_MIN_WORDS", chunk.DefaultMinWords),
		},
		Concurrency: getEnvInt("INGEST_CONCURRENCY", 0),
		CallTimeout: callTimeoutFromEnv(),
	}
}

// answerPipelineConfig assembles the retrieval pipeline configuration from
// RAG_* env vars on top of the given adapters.
func answerPipelineConfig(emb rag.Embedder, store rag.VectorStore, completer rag.Completer) *rag.PipelineConfig {
	return &rag.PipelineConfig{
		Embedder:       emb,
		Store:          store,
		Completer:      completer,
		PromptTemplate: os.Getenv("RAG_PROMPT_TEMPLATE"),
		ContextBudget:  getEnvInt("RAG_CONTEXT_BUDGET", 0),
		CallTimeout:    callTimeoutFromEnv(),
	}
}
