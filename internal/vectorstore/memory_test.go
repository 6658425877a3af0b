package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/kvasir-ai/ragline/internal/rag"
)

func readyMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	if err := s.EnsureCollection(context.Background(), 3, rag.MetricCosine); err != nil {
		t.Fatalf("EnsureCollection() failed: %v", err)
	}
	return s
}

func TestMemoryStore_EnsureCollection_Idempotent(t *testing.T) {
	s := readyMemoryStore(t)
	if err := s.EnsureCollection(context.Background(), 3, rag.MetricCosine); err != nil {
		t.Fatalf("second EnsureCollection with same params should be a no-op, got %v", err)
	}
}

func TestMemoryStore_EnsureCollection_Conflict(t *testing.T) {
	s := readyMemoryStore(t)
	if err := s.EnsureCollection(context.Background(), 4, rag.MetricCosine); !errors.Is(err, rag.ErrConfigConflict) {
		t.Errorf("dims change: expected ErrConfigConflict, got %v", err)
	}
	if err := s.EnsureCollection(context.Background(), 3, rag.MetricDot); !errors.Is(err, rag.ErrConfigConflict) {
		t.Errorf("metric change: expected ErrConfigConflict, got %v", err)
	}
}

func TestMemoryStore_EnsureCollection_Invalid(t *testing.T) {
	s := NewMemoryStore()
	if err := s.EnsureCollection(context.Background(), 0, rag.MetricCosine); !errors.Is(err, rag.ErrInvalidConfig) {
		t.Errorf("zero dims: expected ErrInvalidConfig, got %v", err)
	}
	if err := s.EnsureCollection(context.Background(), 3, rag.Metric("manhattan")); !errors.Is(err, rag.ErrInvalidConfig) {
		t.Errorf("unknown metric: expected ErrInvalidConfig, got %v", err)
	}
}

func TestMemoryStore_Upsert_Idempotent(t *testing.T) {
	s := readyMemoryStore(t)
	records := []rag.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Text: "alpha"},
		{ID: "b", Vector: []float32{0, 1, 0}, Text: "beta"},
	}
	if err := s.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := s.Upsert(context.Background(), records); err != nil {
		t.Fatalf("second Upsert() failed: %v", err)
	}
	if got := s.Len(); got != 2 {
		t.Errorf("expected 2 records after double upsert, got %d", got)
	}
}

func TestMemoryStore_Upsert_Overwrites(t *testing.T) {
	s := readyMemoryStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, []rag.Record{{ID: "a", Vector: []float32{1, 0, 0}, Text: "old"}}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := s.Upsert(ctx, []rag.Record{{ID: "a", Vector: []float32{1, 0, 0}, Text: "new"}}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	matches, err := s.Query(ctx, []float32{1, 0, 0}, 1, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Text != "new" {
		t.Errorf("expected overwritten text %q, got %+v", "new", matches)
	}
}

func TestMemoryStore_Upsert_DimensionMismatch(t *testing.T) {
	s := readyMemoryStore(t)
	err := s.Upsert(context.Background(), []rag.Record{{ID: "a", Vector: []float32{1, 0}}})
	if !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryStore_Upsert_BeforeEnsure(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []rag.Record{{ID: "a", Vector: []float32{1}}})
	if !errors.Is(err, rag.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestMemoryStore_Query_RanksByScore(t *testing.T) {
	s := readyMemoryStore(t)
	ctx := context.Background()
	err := s.Upsert(ctx, []rag.Record{
		{ID: "far", Vector: []float32{0, 1, 0}, Text: "far"},
		{ID: "near", Vector: []float32{1, 0.1, 0}, Text: "near"},
		{ID: "exact", Vector: []float32{1, 0, 0}, Text: "exact"},
	})
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "exact" || matches[1].ID != "near" {
		t.Errorf("expected [exact, near], got [%s, %s]", matches[0].ID, matches[1].ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("scores not descending: %f < %f", matches[0].Score, matches[1].Score)
	}
}

func TestMemoryStore_Query_FewerThanTopK(t *testing.T) {
	s := readyMemoryStore(t)
	ctx := context.Background()
	if err := s.Upsert(ctx, []rag.Record{{ID: "only", Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 match when store holds fewer than topK, got %d", len(matches))
	}
}

func TestMemoryStore_Query_Filter(t *testing.T) {
	s := readyMemoryStore(t)
	ctx := context.Background()
	err := s.Upsert(ctx, []rag.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"source": "pasta.pdf"}},
		{ID: "b", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"source": "soup.pdf"}},
		{ID: "c", Vector: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, rag.Filter{"source": "pasta.pdf"})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "a" {
		t.Errorf("expected only record a, got %+v", matches)
	}
}

func TestMemoryStore_Query_InvalidInput(t *testing.T) {
	s := readyMemoryStore(t)
	ctx := context.Background()
	if _, err := s.Query(ctx, []float32{1, 0, 0}, 0, nil); !errors.Is(err, rag.ErrInvalidInput) {
		t.Errorf("topK=0: expected ErrInvalidInput, got %v", err)
	}
	if _, err := s.Query(ctx, []float32{1, 0}, 1, nil); !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Errorf("short vector: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Query(ctx, []float32{1, 0, 0}, 1, rag.Filter{"": "x"}); !errors.Is(err, rag.ErrInvalidFilter) {
		t.Errorf("empty filter field: expected ErrInvalidFilter, got %v", err)
	}
}

func TestScore_Metrics(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	if got := score(rag.MetricCosine, a, a); got < 0.999 {
		t.Errorf("cosine(a,a) = %f, want ~1", got)
	}
	if got := score(rag.MetricCosine, a, b); got > 0.001 {
		t.Errorf("cosine(a,b) = %f, want ~0", got)
	}
	if got := score(rag.MetricDot, []float32{2, 0}, []float32{3, 0}); got != 6 {
		t.Errorf("dot = %f, want 6", got)
	}
	// Euclidean scores are negated distances, so nearer must rank higher.
	near := score(rag.MetricEuclid, a, []float32{1, 0.1})
	far := score(rag.MetricEuclid, a, b)
	if near <= far {
		t.Errorf("euclid: near (%f) should outrank far (%f)", near, far)
	}
}

func TestBackend_Inference(t *testing.T) {
	t.Setenv("VECTOR_STORE", "")
	t.Setenv("QDRANT_HOST", "")
	t.Setenv("PGVECTOR_DSN", "")
	if got := Backend(); got != "memory" {
		t.Errorf("no config: Backend() = %q, want memory", got)
	}

	t.Setenv("QDRANT_HOST", "localhost")
	if got := Backend(); got != "qdrant" {
		t.Errorf("QDRANT_HOST set: Backend() = %q, want qdrant", got)
	}

	t.Setenv("QDRANT_HOST", "")
	t.Setenv("PGVECTOR_DSN", "host=localhost")
	if got := Backend(); got != "pgvector" {
		t.Errorf("PGVECTOR_DSN set: Backend() = %q, want pgvector", got)
	}

	t.Setenv("VECTOR_STORE", "memory")
	if got := Backend(); got != "memory" {
		t.Errorf("explicit VECTOR_STORE wins: Backend() = %q, want memory", got)
	}
}

func TestNewFromEnv_UnknownStoreBackend(t *testing.T) {
	t.Setenv("VECTOR_STORE", "pinecone")
	if _, err := NewFromEnv(); !errors.Is(err, rag.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
