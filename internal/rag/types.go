// Package rag defines the data model, adapter contracts, and the
// retrieval-augmented query pipeline that ties them together: embed the
// question, search the vector store, assemble a bounded context, render the
// prompt, and call the completion backend. Concrete adapters (Qdrant,
// pgvector, OpenAI, Ollama, etc.) live in their own packages and satisfy the
// interfaces declared here so the pipeline never depends on a specific
// provider.
package rag

// Document is a unit of raw source text produced by a loader, before
// chunking. Metadata carries scalar attributes (source path, page number,
// flags) that are copied onto every chunk derived from it.
type Document struct {
	// Source is the origin URI, file path, or logical name of the document.
	// It seeds the deterministic record IDs, so it must be stable across
	// re-ingestion runs.
	Source string

	// Text is the raw document text.
	Text string

	// Metadata holds string-keyed scalar attributes carried onto chunks.
	Metadata map[string]string
}

// Chunk is a bounded-length window of a Document's text with a stable
// ordinal position. Chunks are immutable once produced.
type Chunk struct {
	// Source is the parent document's source identifier.
	Source string

	// Ordinal is the zero-based position of this chunk within its document.
	Ordinal int

	// Text is the chunk's text window.
	Text string

	// Metadata is the parent document's metadata, merged with chunk-level
	// attributes (e.g. the ordinal).
	Metadata map[string]string
}

// Record is the persisted unit in a vector store: a unique identifier, an
// embedding vector, and enough metadata to reconstruct or display the
// original text. Upserting an existing ID replaces its vector and metadata.
type Record struct {
	// ID uniquely identifies the record within its collection.
	ID string

	// Vector is the embedding for Text. Its length must equal the
	// collection's configured dimensionality.
	Vector []float32

	// Text is the chunk text this record indexes.
	Text string

	// Metadata holds string-keyed scalar attributes, filterable at query time.
	Metadata map[string]string
}

// Match is a single similarity-search result. Matches are transient and
// ordered descending by Score.
type Match struct {
	// ID is the matched record's identifier.
	ID string

	// Text is the matched record's stored text.
	Text string

	// Metadata is the matched record's metadata.
	Metadata map[string]string

	// Score is the similarity score assigned by the store. Higher is better
	// regardless of the collection's distance metric.
	Score float32
}

// Filter is a metadata equality pre-filter: a record is eligible only when
// every key maps to exactly the given value. A nil or empty Filter matches
// all records.
type Filter map[string]string

// Metric identifies the similarity metric a collection was created with.
// It is fixed per collection and must match the metric used at index time.
type Metric string

const (
	// MetricCosine ranks by cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricDot ranks by dot product.
	MetricDot Metric = "dot"
	// MetricEuclid ranks by inverse Euclidean distance.
	MetricEuclid Metric = "euclid"
)

// ValidMetric reports whether m is one of the supported metrics.
func ValidMetric(m Metric) bool {
	switch m {
	case MetricCosine, MetricDot, MetricEuclid:
		return true
	}
	return false
}

// AnswerResult carries every artifact produced by one Answer call so callers
// and tests can inspect retrieval quality independently of generation
// quality.
type AnswerResult struct {
	// Question is the original user question.
	Question string `json:"question"`

	// Matches are the retrieved matches in descending score order, after
	// context-budget truncation.
	Matches []Match `json:"matches"`

	// RenderedPrompt is the full prompt sent to the completion backend.
	RenderedPrompt string `json:"rendered_prompt"`

	// AnswerText is the completion backend's generated answer.
	AnswerText string `json:"answer_text"`
}
