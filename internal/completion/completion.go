package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// ChatCompleter adapts an eino chat model to the rag.Completer interface.
// It sends the rendered prompt as a single user message and returns the
// model's text response.
type ChatCompleter struct {
	model model.ToolCallingChatModel
	// name identifies the backend for error messages and status output.
	name string
}

// NewChatCompleter wraps a chat model. name is used in error messages
// (e.g. "ollama", "openai").
func NewChatCompleter(m model.ToolCallingChatModel, name string) *ChatCompleter {
	return &ChatCompleter{model: m, name: name}
}

// Name returns the backend name this completer was constructed with.
func (c *ChatCompleter) Name() string {
	return c.name
}

// Complete generates a response for the given prompt.
func (c *ChatCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("completion: empty prompt: %w", rag.ErrInvalidInput)
	}

	msg, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("completion: %s generate failed: %v: %w", c.name, err, completionKind(err))
	}
	if msg == nil || msg.Content == "" {
		return "", fmt.Errorf("completion: %s returned an empty response: %w", c.name, rag.ErrProviderUnavailable)
	}
	return msg.Content, nil
}

// completionKind classifies a model error onto the taxonomy. The eino
// backends surface provider errors as opaque strings, so throttling is
// detected by message inspection.
func completionKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return rag.ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") {
		return rag.ErrRateLimited
	}
	return rag.ErrProviderUnavailable
}
