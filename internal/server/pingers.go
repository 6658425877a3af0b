package server

import (
	"context"
	"fmt"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// healthChecker is implemented by vector stores that expose a native health
// probe (Qdrant HealthCheck RPC, Postgres ping).
type healthChecker interface {
	Ping(ctx context.Context) error
}

// StorePinger probes a vector store using its native health check.
// It satisfies the Pinger interface and is used by GET /api/ready.
type StorePinger struct {
	// store is the vector store to probe.
	store healthChecker
	// name identifies the backend in readiness responses (e.g. "qdrant").
	name string
}

// NewStorePinger constructs a StorePinger for the given store and backend name.
func NewStorePinger(store healthChecker, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping calls the store's native health check.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// EmbedderPinger probes an embedding backend by embedding a single short
// probe string. Embedding calls are cheap, so this is safe to run on every
// readiness check.
type EmbedderPinger struct {
	// embedder is the embedding adapter to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a probe string and verifies a vector comes back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vectors, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed probe failed: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return fmt.Errorf("embed probe returned no vector")
	}
	return nil
}

// CompleterPinger probes a completion backend with a minimal prompt.
// Each probe consumes tokens on hosted backends, so wire it into readiness
// only where that cost is acceptable.
type CompleterPinger struct {
	// completer is the completion adapter to probe.
	completer rag.Completer
	// name identifies the backend in readiness responses.
	name string
}

// NewCompleterPinger constructs a CompleterPinger for the given completer and
// backend name.
func NewCompleterPinger(c rag.Completer, name string) *CompleterPinger {
	return &CompleterPinger{completer: c, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *CompleterPinger) Name() string { return p.name }

// Ping sends a minimal completion request.
func (p *CompleterPinger) Ping(ctx context.Context) error {
	if _, err := p.completer.Complete(ctx, "Reply with the single word: pong"); err != nil {
		return fmt.Errorf("completion probe failed: %w", err)
	}
	return nil
}
