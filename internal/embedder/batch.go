package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// batches splits texts into consecutive slices of at most size elements.
// Order is preserved: concatenating the batches yields the original input.
func batches(texts []string, size int) [][]string {
	if size <= 0 || len(texts) <= size {
		if len(texts) == 0 {
			return nil
		}
		return [][]string{texts}
	}
	out := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

// validateInputs rejects oversized texts before any request is sent.
// maxChars of 0 disables the check.
func validateInputs(texts []string, maxChars int) error {
	if maxChars <= 0 {
		return nil
	}
	for i, t := range texts {
		if len(t) > maxChars {
			return fmt.Errorf("input %d has %d chars, provider limit is %d: %w",
				i, len(t), maxChars, rag.ErrInvalidInput)
		}
	}
	return nil
}

// transportKind classifies a client.Do error onto the taxonomy: exceeded
// deadlines (caller context or client timeout) become ErrTimeout, everything
// else is a transient provider failure.
func transportKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return rag.ErrTimeout
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return rag.ErrTimeout
	}
	return rag.ErrProviderUnavailable
}

// statusKind classifies a non-2xx HTTP status onto the taxonomy.
// 429 is throttling, other 4xx mean the request itself was rejected, and
// everything else is a transient provider failure.
func statusKind(status int) error {
	switch {
	case status == 429:
		return rag.ErrRateLimited
	case status >= 400 && status < 500:
		return rag.ErrInvalidInput
	default:
		return rag.ErrProviderUnavailable
	}
}
