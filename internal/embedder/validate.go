package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Preflight checks the embedding configuration before any adapter is
// constructed, so operators get a clear error at startup rather than a
// cryptic failure on the first embed call. It returns rag.ErrInvalidConfig
// when required credentials are missing, and logs a warning when
// EMBEDDING_MODEL looks like a chat model rather than an embedding model.
func Preflight(log *slog.Logger) error {
	backend := Backend()

	// Warn when the backend is inherited from the chat provider without an
	// explicit EMBEDDING_PROVIDER override. The operator may have forgotten
	// to set it, and chat backends like bedrock have no embedding support.
	if backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting chat backend",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}

	switch backend {
	case "ollama":
		// No credentials required.

	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found, set OPENAI_API_KEY or EMBEDDING_API_KEY: %w", rag.ErrInvalidConfig)
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found, set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY: %w", rag.ErrInvalidConfig)
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found, set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT: %w", rag.ErrInvalidConfig)
		}

	case "bedrock", "gemini":
		return fmt.Errorf("embedder: %s has no embedding support, set EMBEDDING_PROVIDER to ollama, openai, or azure: %w", backend, rag.ErrInvalidConfig)

	default:
		return fmt.Errorf("embedder: unknown backend %q (valid: ollama, openai, azure): %w", backend, rag.ErrInvalidConfig)
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, expect poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
