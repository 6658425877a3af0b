// Package ingestion implements the document ingestion pipeline. It filters
// and chunks source documents, embeds each chunk, and upserts the resulting
// records into the vector store. The pipeline is invoked by the
// `ragline ingest` CLI command and the ingest API endpoint.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kvasir-ai/ragline/internal/chunk"
	"github.com/kvasir-ai/ragline/internal/logging"
	"github.com/kvasir-ai/ragline/internal/rag"
)

// recordNamespace seeds deterministic record IDs. Re-ingesting the same
// source yields the same IDs, so upsert replaces rather than duplicates.
var recordNamespace = uuid.MustParse("8c9e4a66-31f2-4a5d-92d3-1f6c0d1c7b41")

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Chunk configures the document splitter. The zero value selects the
	// splitter defaults.
	Chunk chunk.Config

	// Concurrency is the number of documents processed in parallel.
	// Defaults to 4 if zero.
	Concurrency int

	// CallTimeout bounds each embed and upsert call. Zero disables the
	// per-call deadline; the caller's context still applies.
	CallTimeout time.Duration
}

// Failure records a document that could not be ingested.
type Failure struct {
	// Source identifies the failed document.
	Source string `json:"source"`
	// Err is the error message.
	Err string `json:"error"`
}

// Report summarizes one ingestion run.
type Report struct {
	// DocumentsRead is the number of documents submitted.
	DocumentsRead int `json:"documents_read"`
	// DocumentsFiltered is the number rejected by the minimum-word filter.
	DocumentsFiltered int `json:"documents_filtered"`
	// ChunksProduced is the total number of chunks across all documents.
	ChunksProduced int `json:"chunks_produced"`
	// RecordsUpserted is the number of records written to the store.
	RecordsUpserted int `json:"records_upserted"`
	// Failures lists documents that errored. Other documents are unaffected.
	Failures []Failure `json:"failures,omitempty"`
}

// Pipeline orchestrates the filter, chunk, embed, upsert flow.
type Pipeline struct {
	embedder rag.Embedder
	store    rag.VectorStore
	splitter *chunk.Splitter
	cfg      *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil: %w", rag.ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil: %w", rag.ErrInvalidConfig)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	chunkCfg := &cfg.Chunk
	if cfg.Chunk == (chunk.Config{}) {
		// Unset chunk config selects the splitter defaults.
		chunkCfg = nil
	}
	splitter, err := chunk.New(chunkCfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		splitter: splitter,
		cfg:      cfg,
	}, nil
}

// Ingest processes all documents and returns a run report. Documents are
// processed in parallel up to Concurrency; a failure in one document is
// recorded in the report and does not stop the others. The returned error is
// non-nil only when the run as a whole could not proceed.
func (p *Pipeline) Ingest(ctx context.Context, docs []rag.Document) (*Report, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("ingestion: no documents to ingest: %w", rag.ErrInvalidInput)
	}

	log := logging.FromContext(ctx)
	report := &Report{DocumentsRead: len(docs)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.cfg.Concurrency)
	)

	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(doc rag.Document) {
			defer wg.Done()
			defer func() { <-sem }()

			chunks, upserted, err := p.ingestOne(ctx, doc)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == errFiltered:
				report.DocumentsFiltered++
				log.Debug("document filtered", "source", doc.Source)
			case err != nil:
				report.Failures = append(report.Failures, Failure{Source: doc.Source, Err: err.Error()})
				log.Warn("document ingestion failed", "source", doc.Source, "error", err)
			default:
				report.ChunksProduced += chunks
				report.RecordsUpserted += upserted
				log.Info("document ingested", "source", doc.Source, "chunks", chunks)
			}
		}(doc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return report, fmt.Errorf("ingestion: run interrupted: %w", rag.ErrTimeout)
		}
		return report, fmt.Errorf("ingestion: run interrupted: %w", err)
	}
	return report, nil
}

// errFiltered marks documents rejected by the minimum-word filter. It never
// escapes Ingest.
var errFiltered = fmt.Errorf("document below minimum word count")

// ingestOne runs the chunk, embed, upsert flow for a single document.
func (p *Pipeline) ingestOne(ctx context.Context, doc rag.Document) (chunks, upserted int, err error) {
	if !p.splitter.Admit(&doc) {
		return 0, 0, errFiltered
	}

	parts := p.splitter.Split(&doc)
	if len(parts) == 0 {
		return 0, 0, errFiltered
	}

	texts := make([]string, len(parts))
	for i, c := range parts {
		texts[i] = c.Text
	}

	embedCtx, cancel := p.callContext(ctx)
	vectors, err := p.embedder.Embed(embedCtx, texts)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("embedding failed: %w", wrapDeadline(embedCtx, err))
	}
	if len(vectors) != len(parts) {
		return 0, 0, fmt.Errorf("expected %d vectors, got %d: %w", len(parts), len(vectors), rag.ErrProviderUnavailable)
	}

	records := make([]rag.Record, len(parts))
	for i, c := range parts {
		meta := c.Metadata
		if meta == nil {
			meta = make(map[string]string, 1)
		}
		// Store the parent source so queries can filter on it and answers
		// can cite it.
		if _, ok := meta["source"]; !ok {
			meta["source"] = c.Source
		}
		records[i] = rag.Record{
			ID:       RecordID(c.Source, c.Ordinal),
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: meta,
		}
	}

	upsertCtx, cancel := p.callContext(ctx)
	err = p.store.Upsert(upsertCtx, records)
	cancel()
	if err != nil {
		return 0, 0, fmt.Errorf("upsert failed: %w", wrapDeadline(upsertCtx, err))
	}

	return len(parts), len(records), nil
}

// callContext derives a per-call context honoring CallTimeout.
func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// wrapDeadline maps an expired per-call deadline onto ErrTimeout so callers
// see the taxonomy rather than raw context errors.
func wrapDeadline(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%v: %w", err, rag.ErrTimeout)
	}
	return err
}

// RecordID derives a deterministic UUID for a chunk from its source and
// ordinal. Vector stores that require UUID point IDs (Qdrant) accept it
// directly, and re-ingestion maps onto the same IDs.
func RecordID(source string, ordinal int) string {
	name := source + "#" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}
