// Package vectorstore provides implementations of the rag.VectorStore
// interface. The Qdrant store is the production backend; the pgvector store
// targets Postgres installs that already run pgvector; the memory store backs
// tests and local experiments.
package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// payloadTextKey is the reserved payload field holding the chunk text.
// Metadata keys with this name would collide and are rejected at upsert.
const payloadTextKey = "text"

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name this store is bound to.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements rag.VectorStore backed by a Qdrant instance.
// A store is bound to one collection; construct one store per collection.
type QdrantStore struct {
	client *qdrant.Client
	cfg    *QdrantConfig

	mu sync.Mutex
	// dims is the vector size confirmed by EnsureCollection, 0 until then.
	dims int
}

// NewQdrantStore creates a QdrantStore bound to cfg.Collection. The
// collection itself is not touched until EnsureCollection is called.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required: %w", rag.ErrInvalidConfig)
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// qdrantDistance maps a metric name onto Qdrant's distance enum.
func qdrantDistance(metric rag.Metric) (qdrant.Distance, error) {
	switch metric {
	case rag.MetricCosine:
		return qdrant.Distance_Cosine, nil
	case rag.MetricDot:
		return qdrant.Distance_Dot, nil
	case rag.MetricEuclid:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("qdrant: unknown metric %q: %w", metric, rag.ErrInvalidConfig)
	}
}

// EnsureCollection creates the bound collection with the given vector size
// and distance metric, or verifies an existing collection matches. A second
// call with the same parameters is a no-op; differing parameters return
// ErrConfigConflict rather than silently reusing the mismatched collection.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dims int, metric rag.Metric) error {
	if dims <= 0 {
		return fmt.Errorf("qdrant: vector size must be positive, got %d: %w", dims, rag.ErrInvalidConfig)
	}
	distance, err := qdrantDistance(metric)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", storeKind(err))
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant: failed to inspect collection %q: %w", s.cfg.Collection, storeKind(err))
		}
		params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
		if params == nil {
			return fmt.Errorf("qdrant: collection %q uses named vectors, expected a single unnamed vector: %w",
				s.cfg.Collection, rag.ErrConfigConflict)
		}
		if params.GetSize() != uint64(dims) || params.GetDistance() != distance {
			return fmt.Errorf("qdrant: collection %q exists with size=%d distance=%s, requested size=%d distance=%s: %w",
				s.cfg.Collection, params.GetSize(), params.GetDistance(), dims, distance, rag.ErrConfigConflict)
		}
		s.setDims(dims)
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, storeKind(err))
	}

	s.setDims(dims)
	return nil
}

func (s *QdrantStore) setDims(dims int) {
	s.mu.Lock()
	s.dims = dims
	s.mu.Unlock()
}

func (s *QdrantStore) knownDims() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims
}

// Upsert stores or replaces a batch of records. Records reusing an existing
// ID overwrite the previous point, so re-ingesting the same documents leaves
// the collection unchanged.
func (s *QdrantStore) Upsert(ctx context.Context, records []rag.Record) error {
	if len(records) == 0 {
		return nil
	}

	dims := s.knownDims()
	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("qdrant: record %d has no ID: %w", i, rag.ErrInvalidInput)
		}
		if dims > 0 && len(rec.Vector) != dims {
			return fmt.Errorf("qdrant: record %q has vector size %d, collection %q expects %d: %w",
				rec.ID, len(rec.Vector), s.cfg.Collection, dims, rag.ErrDimensionMismatch)
		}

		payload := map[string]interface{}{
			payloadTextKey: rec.Text,
		}
		for k, v := range rec.Metadata {
			if k == payloadTextKey {
				return fmt.Errorf("qdrant: record %q uses reserved metadata key %q: %w", rec.ID, payloadTextKey, rag.ErrInvalidInput)
			}
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", storeKind(err))
	}

	return nil
}

// Query performs a similarity search and returns the top-k matches by score.
// A non-empty filter restricts candidates to points whose payload matches
// every key/value pair before ranking.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, filter rag.Filter) ([]rag.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("qdrant: topK must be positive, got %d: %w", topK, rag.ErrInvalidInput)
	}
	if dims := s.knownDims(); dims > 0 && len(vector) != dims {
		return nil, fmt.Errorf("qdrant: query vector size %d, collection %q expects %d: %w",
			len(vector), s.cfg.Collection, dims, rag.ErrDimensionMismatch)
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			if k == "" {
				return nil, fmt.Errorf("qdrant: filter has empty field name: %w", rag.ErrInvalidFilter)
			}
			must = append(must, qdrant.NewMatch(k, v))
		}
		query.Filter = &qdrant.Filter{Must: must}
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", storeKind(err))
	}

	matches := make([]rag.Match, 0, len(results))
	for _, r := range results {
		m := rag.Match{
			ID:       r.GetId().GetUuid(),
			Score:    r.GetScore(),
			Metadata: make(map[string]string),
		}
		for k, v := range r.GetPayload() {
			if k == payloadTextKey {
				m.Text = v.GetStringValue()
				continue
			}
			m.Metadata[k] = v.GetStringValue()
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// Delete removes records from the collection by ID. Unknown IDs are ignored.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", storeKind(err))
	}

	return nil
}

// Ping checks connectivity to the Qdrant server.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", storeKind(err))
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// storeKind classifies a Qdrant client error onto the taxonomy using its
// gRPC status code.
func storeKind(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%v: %w", err, rag.ErrIndexNotFound)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%v: %w", err, rag.ErrTimeout)
	case codes.ResourceExhausted:
		return fmt.Errorf("%v: %w", err, rag.ErrRateLimited)
	case codes.InvalidArgument:
		return fmt.Errorf("%v: %w", err, rag.ErrInvalidInput)
	default:
		return fmt.Errorf("%v: %w", err, rag.ErrStoreUnavailable)
	}
}
