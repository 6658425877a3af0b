package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/kvasir-ai/ragline/internal/chunk"
	"github.com/kvasir-ai/ragline/internal/rag"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

type stubStore struct{}

func (stubStore) EnsureCollection(context.Context, int, rag.Metric) error { return nil }

func (stubStore) Upsert(context.Context, []rag.Record) error { return nil }

func (stubStore) Query(context.Context, []float32, int, rag.Filter) ([]rag.Match, error) {
	return []rag.Match{{ID: "1", Text: "simmer the stock for hours", Score: 0.9}}, nil
}

func (stubStore) Close() error { return nil }

type stubCompleter struct{}

func (stubCompleter) Complete(context.Context, string) (string, error) { return "ok", nil }

func TestAnswerPipelineConfig_PromptTemplateFromEnv(t *testing.T) {
	t.Setenv("RAG_PROMPT_TEMPLATE", "CTX[{{.Context}}] Q[{{.Question}}]")
	t.Setenv("RAG_CONTEXT_BUDGET", "")
	t.Setenv("RAG_CALL_TIMEOUT", "")

	cfg := answerPipelineConfig(stubEmbedder{}, stubStore{}, stubCompleter{})
	pipeline, err := rag.NewPipeline(cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := pipeline.Answer(context.Background(), &rag.AnswerRequest{
		Question: "How long does stock take?",
		TopK:     1,
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !strings.HasPrefix(result.RenderedPrompt, "CTX[") {
		t.Errorf("custom template not applied:\n%s", result.RenderedPrompt)
	}
	if !strings.Contains(result.RenderedPrompt, "Q[How long does stock take?]") {
		t.Errorf("question missing from rendered prompt:\n%s", result.RenderedPrompt)
	}
}

func TestAnswerPipelineConfig_DefaultTemplateWhenUnset(t *testing.T) {
	t.Setenv("RAG_PROMPT_TEMPLATE", "")

	cfg := answerPipelineConfig(stubEmbedder{}, stubStore{}, stubCompleter{})
	if cfg.PromptTemplate != "" {
		t.Errorf("expected empty template to fall through to the pipeline default, got %q", cfg.PromptTemplate)
	}
}

func TestIngestionConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("CHUNK_MAX_LENGTH", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("CHUNK_MIN_WORDS", "")

	cfg := ingestionConfigFromEnv()
	want := chunk.Config{
		MaxLength: chunk.DefaultMaxLength,
		Overlap:   chunk.DefaultOverlap,
		MinWords:  chunk.DefaultMinWords,
	}
	if cfg.Chunk != want {
		t.Errorf("chunk config: want %+v, got %+v", want, cfg.Chunk)
	}
}
