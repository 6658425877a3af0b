package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// MemoryStore implements rag.VectorStore with an in-process map. It exists
// for tests and local experiments where running Qdrant or Postgres is
// overkill. Scores follow the collection's metric; brute force over all
// records, so keep corpora small.
type MemoryStore struct {
	mu      sync.RWMutex
	created bool
	dims    int
	metric  rag.Metric
	records map[string]rag.Record
}

// NewMemoryStore returns an empty MemoryStore. EnsureCollection must be
// called before Upsert or Query.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]rag.Record)}
}

// EnsureCollection initializes the store with the given vector size and
// metric. Later calls with the same parameters are no-ops; differing
// parameters return ErrConfigConflict.
func (s *MemoryStore) EnsureCollection(_ context.Context, dims int, metric rag.Metric) error {
	if dims <= 0 {
		return fmt.Errorf("memory store: vector size must be positive, got %d: %w", dims, rag.ErrInvalidConfig)
	}
	if !rag.ValidMetric(metric) {
		return fmt.Errorf("memory store: unknown metric %q: %w", metric, rag.ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		if s.dims != dims || s.metric != metric {
			return fmt.Errorf("memory store: collection exists with size=%d metric=%s, requested size=%d metric=%s: %w",
				s.dims, s.metric, dims, metric, rag.ErrConfigConflict)
		}
		return nil
	}
	s.created = true
	s.dims = dims
	s.metric = metric
	return nil
}

// Upsert stores or replaces records by ID.
func (s *MemoryStore) Upsert(_ context.Context, records []rag.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return fmt.Errorf("memory store: collection not created: %w", rag.ErrIndexNotFound)
	}
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("memory store: record %d has no ID: %w", i, rag.ErrInvalidInput)
		}
		if len(rec.Vector) != s.dims {
			return fmt.Errorf("memory store: record %q has vector size %d, collection expects %d: %w",
				rec.ID, len(rec.Vector), s.dims, rag.ErrDimensionMismatch)
		}
		stored := rag.Record{
			ID:     rec.ID,
			Vector: append([]float32(nil), rec.Vector...),
			Text:   rec.Text,
		}
		if rec.Metadata != nil {
			stored.Metadata = make(map[string]string, len(rec.Metadata))
			for k, v := range rec.Metadata {
				stored.Metadata[k] = v
			}
		}
		s.records[rec.ID] = stored
	}
	return nil
}

// Query scores every stored record against the query vector, applies the
// metadata filter, and returns the topK highest-scoring matches in
// descending score order.
func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int, filter rag.Filter) ([]rag.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("memory store: topK must be positive, got %d: %w", topK, rag.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.created {
		return nil, fmt.Errorf("memory store: collection not created: %w", rag.ErrIndexNotFound)
	}
	if len(vector) != s.dims {
		return nil, fmt.Errorf("memory store: query vector size %d, collection expects %d: %w",
			len(vector), s.dims, rag.ErrDimensionMismatch)
	}
	for k := range filter {
		if k == "" {
			return nil, fmt.Errorf("memory store: filter has empty field name: %w", rag.ErrInvalidFilter)
		}
	}

	matches := make([]rag.Match, 0, len(s.records))
	for _, rec := range s.records {
		if !matchesFilter(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, rag.Match{
			ID:       rec.ID,
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Score:    score(s.metric, vector, rec.Vector),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// matchesFilter reports whether metadata satisfies every filter pair.
func matchesFilter(metadata map[string]string, filter rag.Filter) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// score computes the similarity of two equal-length vectors under the given
// metric. Higher is always better; Euclidean distance is negated so the
// closest vector ranks first.
func score(metric rag.Metric, a, b []float32) float32 {
	switch metric {
	case rag.MetricDot:
		return dot(a, b)
	case rag.MetricEuclid:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return float32(-math.Sqrt(sum))
	default: // cosine
		na := norm(a)
		nb := norm(b)
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(a []float32) float32 {
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	return float32(math.Sqrt(sum))
}
