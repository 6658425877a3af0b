package rag

import "context"

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines, batch
// oversized inputs transparently, and preserve input order in the output.
// They must not retry or cache — callers needing either wrap the adapter.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists records and answers nearest-neighbour queries for one
// collection. The collection name is bound at construction; the store must
// support concurrent readers and concurrent upserts.
// Implementations must not retry internally.
type VectorStore interface {
	// EnsureCollection creates the bound collection with the given
	// dimensionality and metric if it does not exist. It is a no-op when the
	// collection exists with matching configuration and fails with
	// ErrConfigConflict when it exists with a different one.
	EnsureCollection(ctx context.Context, dimensions int, metric Metric) error

	// Upsert stores or replaces the given records. Idempotent per ID:
	// upserting the same record twice leaves the collection unchanged.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK matches for the given vector, ordered
	// descending by score. A non-empty filter restricts eligible records to
	// those whose metadata satisfies every key/value pair.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)

	// Close releases any resources held by the store.
	Close() error
}

// Completer sends a rendered prompt to a language model and returns the
// generated text. Implementations must be safe for concurrent use and must
// not retry internally.
type Completer interface {
	// Complete generates a response for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}
