package rag_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kvasir-ai/ragline/internal/chunk"
	"github.com/kvasir-ai/ragline/internal/ingestion"
	"github.com/kvasir-ai/ragline/internal/rag"
	"github.com/kvasir-ai/ragline/internal/vectorstore"
)

// topicEmbedder produces deterministic 3-dimensional vectors by counting
// topic keywords, so similarity search behaves predictably without a live
// embedding backend.
type topicEmbedder struct{}

var topicKeywords = [3][]string{
	{"pasta", "risotto", "rice", "sauce"},
	{"stock", "simmer", "bones", "broth", "skim"},
	{"bread", "dough", "knead", "oven", "yeast"},
}

func (topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, 3)
		for dim, words := range topicKeywords {
			for _, w := range words {
				vec[dim] += float32(strings.Count(lower, w))
			}
		}
		out[i] = vec
	}
	return out, nil
}

// cannedCompleter echoes a fixed answer and keeps the prompt for inspection.
type cannedCompleter struct {
	answer    string
	gotPrompt string
}

func (c *cannedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.gotPrompt = prompt
	return c.answer, nil
}

// cookingCorpus is three short documents on distinct cooking topics, each
// long enough to pass the minimum word filter.
func cookingCorpus() []rag.Document {
	return []rag.Document{
		{
			Source: "risotto.md",
			Text: "Risotto rewards patience above all. Toast the rice in butter until " +
				"translucent at the edges, then add warm liquid one ladle at a time, " +
				"stirring so the rice releases starch and the sauce turns creamy. " +
				"Finish the risotto off the heat with cold butter and grated cheese.",
			Metadata: map[string]string{"doc_type": "recipe"},
		},
		{
			Source: "stock.md",
			Text: "A clear stock starts with cold water and roasted bones. Bring the pot " +
				"to a bare simmer and never a boil, then skim the surface as foam rises. " +
				"Let the stock simmer for at least four hours, adding vegetables only in " +
				"the final hour so the broth stays bright and clean.",
			Metadata: map[string]string{"doc_type": "recipe"},
		},
		{
			Source: "bread.md",
			Text: "Good bread needs time more than skill. Mix flour, water, salt, and a " +
				"little yeast, then knead the dough until smooth and elastic. Let it rise " +
				"until doubled, shape it gently, and bake in a hot oven with steam for a " +
				"crackling crust on the finished bread.",
			Metadata: map[string]string{"doc_type": "recipe"},
		},
	}
}

// ingestCorpus seeds a fresh in-memory store with the cooking corpus.
func ingestCorpus(t *testing.T) (*vectorstore.MemoryStore, *ingestion.Report) {
	t.Helper()
	ctx := context.Background()

	store := vectorstore.NewMemoryStore()
	if err := store.EnsureCollection(ctx, 3, rag.MetricCosine); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}

	pipeline, err := ingestion.NewPipeline(topicEmbedder{}, store, &ingestion.Config{
		Chunk: chunk.Config{MaxLength: 200, Overlap: 40, MinWords: 20},
	})
	if err != nil {
		t.Fatalf("new ingestion pipeline: %v", err)
	}

	report, err := pipeline.Ingest(ctx, cookingCorpus())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected ingest failures: %v", report.Failures)
	}
	return store, report
}

func TestScenario_CookingCorpusAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, report := ingestCorpus(t)
	if report.DocumentsRead != 3 || report.RecordsUpserted == 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	comp := &cannedCompleter{answer: "Simmer the stock for at least four hours."}
	pipeline, err := rag.NewPipeline(&rag.PipelineConfig{
		Embedder:  topicEmbedder{},
		Store:     store,
		Completer: comp,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := pipeline.Answer(ctx, &rag.AnswerRequest{
		Question: "How long should the stock simmer and when do I skim the broth?",
		TopK:     2,
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if len(result.Matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if got := result.Matches[0].Metadata["source"]; got != "stock.md" {
		t.Errorf("top match source: expected stock.md, got %q", got)
	}
	for i := 1; i < len(result.Matches); i++ {
		if result.Matches[i].Score > result.Matches[i-1].Score {
			t.Error("matches not in descending score order")
		}
	}
	if !strings.Contains(result.RenderedPrompt, "simmer") {
		t.Errorf("prompt missing retrieved stock context:\n%s", result.RenderedPrompt)
	}
	if result.AnswerText != "Simmer the stock for at least four hours." {
		t.Errorf("answer: got %q", result.AnswerText)
	}
}

func TestScenario_FilterRestrictsSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, _ := ingestCorpus(t)

	comp := &cannedCompleter{answer: "ok"}
	pipeline, err := rag.NewPipeline(&rag.PipelineConfig{
		Embedder:  topicEmbedder{},
		Store:     store,
		Completer: comp,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := pipeline.Answer(ctx, &rag.AnswerRequest{
		Question: "What makes the dough rise when baking bread?",
		TopK:     5,
		Filter:   rag.Filter{"source": "bread.md"},
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	for _, m := range result.Matches {
		if m.Metadata["source"] != "bread.md" {
			t.Errorf("filter leaked foreign source: %q", m.Metadata["source"])
		}
	}
	if len(result.Matches) == 0 {
		t.Error("expected bread matches under filter")
	}
}

func TestScenario_ReingestIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, first := ingestCorpus(t)
	countAfterFirst := store.Len()

	pipeline, err := ingestion.NewPipeline(topicEmbedder{}, store, &ingestion.Config{
		Chunk: chunk.Config{MaxLength: 200, Overlap: 40, MinWords: 20},
	})
	if err != nil {
		t.Fatalf("new ingestion pipeline: %v", err)
	}
	second, err := pipeline.Ingest(ctx, cookingCorpus())
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}

	if store.Len() != countAfterFirst {
		t.Errorf("re-ingest grew the store: %d -> %d", countAfterFirst, store.Len())
	}
	if second.RecordsUpserted != first.RecordsUpserted {
		t.Errorf("re-ingest upserted a different record count: %d vs %d",
			second.RecordsUpserted, first.RecordsUpserted)
	}
}

// mealEmbedder counts dish keywords into a 3-dimensional vector, giving
// the short-corpus scenario a predictable nearest neighbour.
type mealEmbedder struct{}

func (mealEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	keywords := [3]string{"pasta", "pizza", "egg"}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, 3)
		for dim, w := range keywords {
			vec[dim] = float32(strings.Count(lower, w))
		}
		out[i] = vec
	}
	return out, nil
}

func TestScenario_ShortCorpusOneChunkPerDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	docs := []rag.Document{
		{Source: "pasta.txt", Text: "To cook pasta, boil water, add salt, then put pasta until soft."},
		{Source: "pizza.txt", Text: "To make pizza, prepare dough, add sauce and cheese, bake in oven."},
		{Source: "eggs.txt", Text: "To boil eggs, place eggs in water, boil for 10 minutes."},
	}

	store := vectorstore.NewMemoryStore()
	if err := store.EnsureCollection(ctx, 3, rag.MetricCosine); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}

	ingest, err := ingestion.NewPipeline(mealEmbedder{}, store, &ingestion.Config{
		Chunk: chunk.Config{MaxLength: 500, Overlap: 150},
	})
	if err != nil {
		t.Fatalf("new ingestion pipeline: %v", err)
	}
	report, err := ingest.Ingest(ctx, docs)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.ChunksProduced != 3 || report.RecordsUpserted != 3 {
		t.Fatalf("expected one chunk per document, got report %+v", report)
	}

	comp := &cannedCompleter{answer: "Boil salted water, then cook the pasta until soft."}
	pipeline, err := rag.NewPipeline(&rag.PipelineConfig{
		Embedder:  mealEmbedder{},
		Store:     store,
		Completer: comp,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	result, err := pipeline.Answer(ctx, &rag.AnswerRequest{
		Question: "How do I cook pasta?",
		TopK:     2,
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(result.Matches) == 0 {
		t.Fatal("expected matches")
	}
	if got := result.Matches[0].Metadata["source"]; got != "pasta.txt" {
		t.Errorf("top match source: expected pasta.txt, got %q", got)
	}
	if !strings.Contains(result.RenderedPrompt, "boil water, add salt") {
		t.Errorf("prompt missing pasta context:\n%s", result.RenderedPrompt)
	}
}
