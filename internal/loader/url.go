package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// FetcherConfig holds settings for fetching remote documents.
type FetcherConfig struct {
	// Timeout bounds each fetch request. Defaults to 30s if zero.
	Timeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string

	// MaxBytes caps the response body size. Defaults to 10 MiB if zero.
	MaxBytes int64
}

// Fetcher retrieves remote documents over HTTP.
type Fetcher struct {
	cfg    *FetcherConfig
	client *http.Client
}

// NewFetcher constructs a Fetcher. A nil config uses defaults.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	if cfg == nil {
		cfg = &FetcherConfig{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragline/1.0 (document ingestion)"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch retrieves the raw text content of a URL as a single document.
func (f *Fetcher) Fetch(ctx context.Context, url string) (rag.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rag.Document{}, fmt.Errorf("loader: creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return rag.Document{}, fmt.Errorf("loader: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rag.Document{}, fmt.Errorf("loader: unexpected status %d for %s: %w",
			resp.StatusCode, url, rag.ErrInvalidInput)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return rag.Document{}, fmt.Errorf("loader: reading body of %s: %w", url, err)
	}

	return rag.Document{
		Source: url,
		Text:   strings.TrimSpace(string(body)),
	}, nil
}
