package vectorstore

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "ragline"

// Backend returns the configured vector store backend name. When
// VECTOR_STORE is unset, the backend is inferred: qdrant if QDRANT_HOST is
// set, pgvector if PGVECTOR_DSN is set, otherwise memory.
func Backend() string {
	if b := os.Getenv("VECTOR_STORE"); b != "" {
		return b
	}
	if os.Getenv("QDRANT_HOST") != "" {
		return "qdrant"
	}
	if os.Getenv("PGVECTOR_DSN") != "" {
		return "pgvector"
	}
	return "memory"
}

// Collection returns the configured collection name.
func Collection() string {
	if c := os.Getenv("VECTOR_COLLECTION"); c != "" {
		return c
	}
	return DefaultCollection
}

// NewFromEnv constructs a rag.VectorStore for the configured backend.
//
// Environment:
//
//	VECTOR_STORE       qdrant | pgvector | memory (inferred when unset)
//	VECTOR_COLLECTION  collection name (default: ragline)
//	QDRANT_HOST        Qdrant hostname
//	QDRANT_PORT        Qdrant gRPC port (default: 6334)
//	QDRANT_API_KEY     optional API key
//	QDRANT_USE_TLS     "true" to enable TLS
//	PGVECTOR_DSN       lib/pq connection string for the pgvector backend
func NewFromEnv() (rag.VectorStore, error) {
	switch backend := Backend(); backend {
	case "qdrant":
		port := 0
		if v := os.Getenv("QDRANT_PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("vectorstore: invalid QDRANT_PORT %q: %w", v, rag.ErrInvalidConfig)
			}
			port = p
		}
		return NewQdrantStore(&QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       port,
			Collection: Collection(),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_USE_TLS") == "true",
		})

	case "pgvector":
		dsn := os.Getenv("PGVECTOR_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("vectorstore: pgvector backend requires PGVECTOR_DSN: %w", rag.ErrInvalidConfig)
		}
		return NewPgvectorStore(dsn, Collection())

	case "memory":
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("vectorstore: unknown backend %q (valid: qdrant, pgvector, memory): %w",
			backend, rag.ErrInvalidConfig)
	}
}
