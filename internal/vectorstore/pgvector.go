package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// metaTable records each collection's vector size and metric so a later
// EnsureCollection call can detect parameter drift.
const metaTable = "ragline_collections"

// identPattern restricts collection names to safe SQL identifiers. The
// collection name becomes the table name, so it cannot be parameterized.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// pg error codes we map onto the taxonomy.
const (
	pqUndefinedTable    = "42P01"
	pqQueryCanceled     = "57014"
	pqTooManyConns      = "53300"
	pqInsufficientPrivs = "42501"
)

// PgvectorStore implements rag.VectorStore on Postgres with the pgvector
// extension. Each collection is one table with an id, an embedding, the
// chunk text, and a JSONB metadata column. A store is bound to one
// collection; construct one store per collection.
type PgvectorStore struct {
	db         *sql.DB
	collection string
}

// NewPgvectorStore opens a Postgres connection for the given collection.
// dsn is a lib/pq connection string, e.g.
// "host=localhost user=postgres dbname=ragline sslmode=disable".
func NewPgvectorStore(dsn, collection string) (*PgvectorStore, error) {
	if !identPattern.MatchString(collection) {
		return nil, fmt.Errorf("pgvector: collection name %q must match %s: %w",
			collection, identPattern.String(), rag.ErrInvalidConfig)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: open connection: %w", err)
	}
	return &PgvectorStore{db: db, collection: collection}, nil
}

// pgOperator returns the pgvector distance operator and a score conversion
// for the metric. Postgres returns distances (lower is better); scores are
// converted so higher is always better, matching the other stores.
func pgOperator(metric rag.Metric) (op string, opClass string, toScore func(float64) float32, err error) {
	switch metric {
	case rag.MetricCosine:
		return "<=>", "vector_cosine_ops", func(d float64) float32 { return float32(1 - d) }, nil
	case rag.MetricDot:
		// <#> yields the negated inner product.
		return "<#>", "vector_ip_ops", func(d float64) float32 { return float32(-d) }, nil
	case rag.MetricEuclid:
		return "<->", "vector_l2_ops", func(d float64) float32 { return float32(-d) }, nil
	default:
		return "", "", nil, fmt.Errorf("pgvector: unknown metric %q: %w", metric, rag.ErrInvalidConfig)
	}
}

// EnsureCollection creates the collection table, its vector index, and the
// meta row recording dims and metric. Re-running with the same parameters is
// a no-op; differing parameters return ErrConfigConflict.
func (s *PgvectorStore) EnsureCollection(ctx context.Context, dims int, metric rag.Metric) error {
	if dims <= 0 {
		return fmt.Errorf("pgvector: vector size must be positive, got %d: %w", dims, rag.ErrInvalidConfig)
	}
	_, opClass, _, err := pgOperator(metric)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: enable extension: %w", pgKind(err))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, dims INT NOT NULL, metric TEXT NOT NULL)",
		metaTable)); err != nil {
		return fmt.Errorf("pgvector: create meta table: %w", pgKind(err))
	}

	var haveDims int
	var haveMetric string
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT dims, metric FROM %s WHERE name = $1", metaTable), s.collection)
	switch err := row.Scan(&haveDims, &haveMetric); {
	case err == nil:
		if haveDims != dims || haveMetric != string(metric) {
			return fmt.Errorf("pgvector: collection %q exists with dims=%d metric=%s, requested dims=%d metric=%s: %w",
				s.collection, haveDims, haveMetric, dims, metric, rag.ErrConfigConflict)
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// First time for this collection.
	default:
		return fmt.Errorf("pgvector: read collection meta: %w", pgKind(err))
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, embedding vector(%d) NOT NULL, content TEXT NOT NULL, metadata JSONB NOT NULL DEFAULT '{}')",
		s.collection, dims)); err != nil {
		return fmt.Errorf("pgvector: create collection table: %w", pgKind(err))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding %s)",
		s.collection, s.collection, opClass)); err != nil {
		return fmt.Errorf("pgvector: create vector index: %w", pgKind(err))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (name, dims, metric) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING",
		metaTable), s.collection, dims, string(metric)); err != nil {
		return fmt.Errorf("pgvector: record collection meta: %w", pgKind(err))
	}

	return nil
}

// Upsert stores or replaces records by ID. Re-ingesting the same records
// leaves the table unchanged apart from overwritten rows.
func (s *PgvectorStore) Upsert(ctx context.Context, records []rag.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, content, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata
	`, s.collection)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgvector: begin upsert: %w", pgKind(err))
	}
	defer tx.Rollback()

	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("pgvector: record %d has no ID: %w", i, rag.ErrInvalidInput)
		}
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("pgvector: marshal metadata for %q: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, rec.ID, pgvector.NewVector(rec.Vector), rec.Text, meta); err != nil {
			return fmt.Errorf("pgvector: upsert %q: %w", rec.ID, pgKind(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgvector: commit upsert: %w", pgKind(err))
	}
	return nil
}

// Query performs a similarity search with an optional metadata containment
// filter and returns the topK highest-scoring matches.
func (s *PgvectorStore) Query(ctx context.Context, vector []float32, topK int, filter rag.Filter) ([]rag.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("pgvector: topK must be positive, got %d: %w", topK, rag.ErrInvalidInput)
	}

	var metric string
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT metric FROM %s WHERE name = $1", metaTable), s.collection)
	if err := row.Scan(&metric); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pgvector: collection %q not found: %w", s.collection, rag.ErrIndexNotFound)
		}
		return nil, fmt.Errorf("pgvector: read collection meta: %w", pgKind(err))
	}
	op, _, toScore, err := pgOperator(rag.Metric(metric))
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT id, content, metadata, embedding %s $1 AS distance FROM %s", op, s.collection)
	args := []interface{}{pgvector.NewVector(vector)}
	if len(filter) > 0 {
		for k := range filter {
			if k == "" {
				return nil, fmt.Errorf("pgvector: filter has empty field name: %w", rag.ErrInvalidFilter)
			}
		}
		cond, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("pgvector: marshal filter: %w", err)
		}
		query += " WHERE metadata @> $2"
		args = append(args, cond)
	}
	query += fmt.Sprintf(" ORDER BY distance LIMIT %d", topK)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query failed: %w", pgKind(err))
	}
	defer rows.Close()

	var matches []rag.Match
	for rows.Next() {
		var (
			m        rag.Match
			meta     []byte
			distance float64
		)
		if err := rows.Scan(&m.ID, &m.Text, &meta, &distance); err != nil {
			return nil, fmt.Errorf("pgvector: scan match: %w", pgKind(err))
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("pgvector: decode metadata for %q: %w", m.ID, err)
		}
		m.Score = toScore(distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: iterate matches: %w", pgKind(err))
	}

	return matches, nil
}

// Delete removes records from the collection by ID. Unknown IDs are ignored.
func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.collection)
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("pgvector: delete failed: %w", pgKind(err))
	}
	return nil
}

// Ping checks connectivity to the Postgres server.
func (s *PgvectorStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pgvector: ping failed: %w", pgKind(err))
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PgvectorStore) Close() error {
	return s.db.Close()
}

// pgKind classifies a Postgres error onto the taxonomy.
func pgKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, rag.ErrTimeout)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUndefinedTable:
			return fmt.Errorf("%v: %w", err, rag.ErrIndexNotFound)
		case pqQueryCanceled:
			return fmt.Errorf("%v: %w", err, rag.ErrTimeout)
		case pqTooManyConns:
			return fmt.Errorf("%v: %w", err, rag.ErrRateLimited)
		case pqInsufficientPrivs:
			return fmt.Errorf("%v: %w", err, rag.ErrInvalidConfig)
		}
		if pqErr.Code.Class() == "22" { // data exception, e.g. wrong vector dimension
			return fmt.Errorf("%v: %w", err, rag.ErrDimensionMismatch)
		}
	}
	return fmt.Errorf("%v: %w", err, rag.ErrStoreUnavailable)
}
