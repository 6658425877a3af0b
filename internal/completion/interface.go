// Package completion selects and constructs chat model backends and adapts
// them to the rag.Completer interface. Supported backends: Ollama, OpenAI,
// Azure OpenAI, AWS Bedrock, Google Gemini.
package completion

import (
	"fmt"
	"strings"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// Backend enumerates the supported inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama-specific settings.
type ProviderOllama struct {
	// Host is the Ollama server base URL.
	Host string
	// Model is the model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI holds OpenAI-specific settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model name (e.g. "gpt-4o").
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI Service settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI key.
	APIKey string
	// Endpoint is the resource endpoint (https://<resource>.openai.azure.com).
	Endpoint string
	// Deployment is the deployment name.
	Deployment string
	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderBedrock holds AWS Bedrock settings. Credentials are resolved via
// the standard AWS SDK chain.
type ProviderBedrock struct {
	// AWSRegion is the AWS region.
	AWSRegion string
	// ModelID is the Bedrock model ID.
	ModelID string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the AI Studio API key.
	APIKey string
	// Model is the model name (e.g. "gemini-1.5-pro").
	Model string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32
}

// Config holds all completion provider configuration resolved from
// environment variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Bedrock     ProviderBedrock
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate checks that the selected backend has the configuration it needs.
// Error messages name the environment variable that would populate the
// missing field so startup failures are actionable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("completion: OLLAMA_MODEL is required for ollama backend: %w", rag.ErrInvalidConfig)
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("completion: OPENAI_API_KEY is required for openai backend: %w", rag.ErrInvalidConfig)
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("completion: OPENAI_MODEL is required for openai backend: %w", rag.ErrInvalidConfig)
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("completion: AZURE_OPENAI_API_KEY is required for azure backend: %w", rag.ErrInvalidConfig)
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("completion: AZURE_OPENAI_ENDPOINT is required for azure backend: %w", rag.ErrInvalidConfig)
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("completion: AZURE_OPENAI_DEPLOYMENT is required for azure backend: %w", rag.ErrInvalidConfig)
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("completion: BEDROCK_MODEL_ID is required for bedrock backend: %w", rag.ErrInvalidConfig)
		}
		if c.Bedrock.AWSRegion == "" {
			return fmt.Errorf("completion: AWS_REGION is required for bedrock backend: %w", rag.ErrInvalidConfig)
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("completion: GOOGLE_API_KEY is required for gemini backend: %w", rag.ErrInvalidConfig)
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("completion: GEMINI_MODEL is required for gemini backend: %w", rag.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("completion: unknown backend %q (valid: ollama, openai, azure, bedrock, gemini): %w",
			c.Backend, rag.ErrInvalidConfig)
	}
	return nil
}

// azureReasoningPrefixes identifies Azure deployments of o-series and codex
// models, which reject the temperature parameter.
var azureReasoningPrefixes = []string{"o1", "o3", "o4", "codex"}

// isAzureReasoningModel reports whether the deployment name refers to a
// reasoning-class model that rejects standard tuning parameters.
func isAzureReasoningModel(deployment string) bool {
	lower := strings.ToLower(deployment)
	for _, prefix := range azureReasoningPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
