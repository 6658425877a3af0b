package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/kvasir-ai/ragline/internal/budget"
	"github.com/kvasir-ai/ragline/internal/logging"
)

// DefaultPromptTemplate is the prompt used when no template is configured.
// Templates are ordinary text/template bodies over {{.Context}} and
// {{.Question}}, so operators can swap in their own personas via config.
const DefaultPromptTemplate = `You are a helpful assistant. Answer the question using only the provided context.

Context:
{{.Context}}

Question: {{.Question}}

Answer:`

// DefaultContextBudget is the maximum number of characters of retrieved
// context assembled into the prompt when no budget is configured. It guards
// against overflowing the completion backend's input window.
const DefaultContextBudget = 8000

// PipelineConfig holds the dependencies and settings for a Pipeline.
type PipelineConfig struct {
	// Embedder converts the question into a query vector.
	Embedder Embedder

	// Store answers the similarity search.
	Store VectorStore

	// Completer generates the final answer.
	Completer Completer

	// PromptTemplate is a text/template body over {{.Context}} and
	// {{.Question}}. Defaults to DefaultPromptTemplate if empty.
	PromptTemplate string

	// ContextBudget is the maximum combined character length of match text
	// assembled into the prompt. Whole matches are dropped lowest-score-first
	// to fit. Defaults to DefaultContextBudget if zero.
	ContextBudget int

	// CallTimeout bounds each external call (embed, query, complete)
	// individually. Zero disables the per-call deadline; the caller's context
	// still applies.
	CallTimeout time.Duration
}

// AnswerRequest is one question for the pipeline.
type AnswerRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`

	// TopK is the number of matches to retrieve. Must be positive.
	TopK int `json:"top_k"`

	// Filter optionally restricts eligible records by metadata equality.
	Filter Filter `json:"filter,omitempty"`
}

// Pipeline is the retrieval-augmented query pipeline. One Answer invocation
// is a strict sequential chain; independent invocations may run concurrently
// since the pipeline holds no mutable state.
type Pipeline struct {
	// embedder converts the question into a query vector.
	embedder Embedder

	// store answers the similarity search.
	store VectorStore

	// completer generates the final answer.
	completer Completer

	// tmpl is the parsed prompt template.
	tmpl *template.Template

	// contextBudget is the maximum assembled context length in characters.
	contextBudget int

	// callTimeout bounds each external call individually. Zero means no
	// per-call deadline.
	callTimeout time.Duration
}

// promptData is the data passed to the prompt template.
type promptData struct {
	// Context is the newline-joined retrieved match text.
	Context string
	// Question is the original user question.
	Question string
}

// NewPipeline validates cfg and constructs a Pipeline. Configuration errors
// (nil adapters, unparsable template, negative budget) fail here with
// ErrInvalidConfig — never at Answer time.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil: %w", ErrInvalidConfig)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil: %w", ErrInvalidConfig)
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("rag: completer must not be nil: %w", ErrInvalidConfig)
	}
	if cfg.ContextBudget < 0 {
		return nil, fmt.Errorf("rag: context budget must not be negative: %w", ErrInvalidConfig)
	}

	body := cfg.PromptTemplate
	if body == "" {
		body = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("rag: parse prompt template: %v: %w", err, ErrInvalidConfig)
	}
	// Render once with placeholder data so undefined fields fail at
	// construction, not on the first question.
	if err := tmpl.Execute(&strings.Builder{}, promptData{}); err != nil {
		return nil, fmt.Errorf("rag: prompt template rejected render: %v: %w", err, ErrInvalidConfig)
	}

	contextBudget := cfg.ContextBudget
	if contextBudget == 0 {
		contextBudget = DefaultContextBudget
	}

	return &Pipeline{
		embedder:      cfg.Embedder,
		store:         cfg.Store,
		completer:     cfg.Completer,
		tmpl:          tmpl,
		contextBudget: contextBudget,
		callTimeout:   cfg.CallTimeout,
	}, nil
}

// Answer runs the full retrieve-then-generate chain for one question:
// embed → query → fit context → render → complete. Any step's failure aborts
// the whole call with the originating error kind — no partial results, no
// internal retries.
func (p *Pipeline) Answer(ctx context.Context, req *AnswerRequest) (*AnswerResult, error) {
	if req == nil || strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("rag: question must not be empty: %w", ErrInvalidInput)
	}
	if req.TopK <= 0 {
		return nil, fmt.Errorf("rag: top-k must be positive, got %d: %w", req.TopK, ErrInvalidInput)
	}

	log := logging.FromContext(ctx)

	vector, err := p.embedQuestion(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	matches, err := p.search(ctx, vector, req.TopK, req.Filter)
	if err != nil {
		return nil, err
	}

	kept, dropped := fitContext(matches, p.contextBudget)
	if dropped > 0 {
		log.Warn("rag: dropped matches to fit context budget",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("budget_chars", p.contextBudget),
		)
	}

	prompt, err := p.render(joinContext(kept), req.Question)
	if err != nil {
		return nil, err
	}
	log.Debug("rag: prompt rendered",
		slog.Int("matches", len(kept)),
		slog.Int("prompt_tokens_est", budget.Estimate(prompt)),
	)

	answer, err := p.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &AnswerResult{
		Question:       req.Question,
		Matches:        kept,
		RenderedPrompt: prompt,
		AnswerText:     answer,
	}, nil
}

// embedQuestion converts the question into a query vector under the per-call
// deadline.
func (p *Pipeline) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	vectors, err := p.embedder.Embed(callCtx, []string{question})
	if err != nil {
		return nil, p.wrapCall("embed question", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for one question: %w",
			len(vectors), ErrProviderUnavailable)
	}
	return vectors[0], nil
}

// search queries the store under the per-call deadline.
func (p *Pipeline) search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	matches, err := p.store.Query(callCtx, vector, topK, filter)
	if err != nil {
		return nil, p.wrapCall("vector search", err)
	}
	return matches, nil
}

// complete invokes the completion backend under the per-call deadline.
func (p *Pipeline) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	answer, err := p.completer.Complete(callCtx, prompt)
	if err != nil {
		return "", p.wrapCall("completion", err)
	}
	return answer, nil
}

// render substitutes context and question into the prompt template.
func (p *Pipeline) render(contextBlock, question string) (string, error) {
	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, promptData{Context: contextBlock, Question: question}); err != nil {
		// Parse and a trial render succeeded at construction, so a failure
		// here is unexpected; classify as config to keep the taxonomy closed.
		return "", fmt.Errorf("rag: render prompt: %v: %w", err, ErrInvalidConfig)
	}
	return sb.String(), nil
}

// callContext derives the per-call context. The returned cancel must always
// be called so the deadline timer is released.
func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.callTimeout)
}

// wrapCall names the failing step and maps an exceeded deadline onto
// ErrTimeout. Adapter error kinds pass through unchanged.
func (p *Pipeline) wrapCall(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("rag: %s timed out after %s: %w", op, p.callTimeout, ErrTimeout)
	}
	return fmt.Errorf("rag: %s failed: %w", op, err)
}

// fitContext keeps the highest-scoring prefix of matches whose combined text
// (with one newline separator between entries) fits within maxChars. Whole
// matches are dropped lowest-score-first; text is never cut mid-match.
// Returns the kept matches and the number dropped.
func fitContext(matches []Match, maxChars int) ([]Match, int) {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	n := budget.Fit(texts, 1, maxChars)
	return matches[:n], len(matches) - n
}

// joinContext concatenates match text in score order, newline-separated.
func joinContext(matches []Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Text
	}
	return strings.Join(parts, "\n")
}
