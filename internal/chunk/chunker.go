// Package chunk implements the document chunking stage: a sliding window of
// configurable size and overlap across document text, plus the minimum
// word-count pre-filter applied to documents before chunking. Splitting is a
// pure function of its inputs — re-splitting the same document always yields
// identical chunks.
package chunk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// Defaults sized for character-based embedding inputs.
const (
	// DefaultMaxLength is the default chunk window size in characters.
	DefaultMaxLength = 500
	// DefaultOverlap is the default number of characters shared between
	// consecutive chunks from the same document.
	DefaultOverlap = 150
	// DefaultMinWords is the default minimum word count a document (or page)
	// must have to be chunked at all. Shorter documents are filtered out.
	DefaultMinWords = 20
)

// Config holds the chunking parameters. A nil Config passed to New selects
// the package defaults; an explicit Config is validated as given, so both
// MaxLength and Overlap must be positive.
type Config struct {
	// MaxLength is the chunk window size in characters. Must be positive.
	MaxLength int

	// Overlap is the number of characters consecutive chunks share.
	// Must be positive and smaller than MaxLength.
	Overlap int

	// MinWords is the minimum word count for a document to pass the
	// pre-filter. Zero means no filtering.
	MinWords int
}

// Splitter produces overlapping chunks from documents. Safe for concurrent
// use — it holds only immutable configuration.
type Splitter struct {
	// maxLength is the chunk window size in characters.
	maxLength int
	// overlap is the shared character count between consecutive chunks.
	overlap int
	// minWords is the document pre-filter threshold (0 = disabled).
	minWords int
}

// New validates cfg and constructs a Splitter. The window parameters are
// checked here so misconfiguration fails at startup, not mid-ingestion.
func New(cfg *Config) (*Splitter, error) {
	if cfg == nil {
		cfg = &Config{MaxLength: DefaultMaxLength, Overlap: DefaultOverlap, MinWords: DefaultMinWords}
	}

	if cfg.MaxLength <= 0 {
		return nil, fmt.Errorf("chunk: max length must be positive, got %d: %w", cfg.MaxLength, rag.ErrInvalidConfig)
	}
	if cfg.Overlap <= 0 {
		return nil, fmt.Errorf("chunk: overlap must be positive, got %d: %w", cfg.Overlap, rag.ErrInvalidConfig)
	}
	if cfg.Overlap >= cfg.MaxLength {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than max length %d: %w",
			cfg.Overlap, cfg.MaxLength, rag.ErrInvalidConfig)
	}
	if cfg.MinWords < 0 {
		return nil, fmt.Errorf("chunk: min words must not be negative, got %d: %w", cfg.MinWords, rag.ErrInvalidConfig)
	}

	return &Splitter{maxLength: cfg.MaxLength, overlap: cfg.Overlap, minWords: cfg.MinWords}, nil
}

// Admit reports whether doc passes the minimum word-count pre-filter.
// This is a document-level decision made before chunking, so blank or
// near-empty pages never reach the embedder.
func (s *Splitter) Admit(doc *rag.Document) bool {
	if s.minWords <= 0 {
		return true
	}
	return len(strings.Fields(doc.Text)) >= s.minWords
}

// Split slides a window of maxLength characters across the document text,
// advancing by maxLength-overlap each step. Every chunk except the last has
// exactly maxLength characters; consecutive chunks share exactly overlap
// characters. The parent document's metadata is copied onto each chunk,
// with the chunk ordinal added.
func (s *Splitter) Split(doc *rag.Document) []rag.Chunk {
	text := []rune(strings.TrimSpace(doc.Text))
	if len(text) == 0 {
		return nil
	}

	step := s.maxLength - s.overlap

	var chunks []rag.Chunk
	for start := 0; start < len(text); start += step {
		end := start + s.maxLength
		if end > len(text) {
			end = len(text)
		}

		ordinal := len(chunks)
		meta := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["chunk_ordinal"] = strconv.Itoa(ordinal)

		chunks = append(chunks, rag.Chunk{
			Source:   doc.Source,
			Ordinal:  ordinal,
			Text:     string(text[start:end]),
			Metadata: meta,
		})
		if end == len(text) {
			break
		}
	}

	return chunks
}
