// Package loader reads source material into rag.Documents. It handles local
// text and PDF files, directories of either, and remote URLs. Loaders only
// read and normalize content; filtering and chunking happen in the ingestion
// pipeline.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// Load reads a single source, dispatching on its shape: http(s) URLs are
// fetched, directories are walked, .pdf files are extracted page by page,
// and everything else is read as plain text.
func Load(ctx context.Context, source string) ([]rag.Document, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		doc, err := NewFetcher(nil).Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return []rag.Document{doc}, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("loader: stat %s: %w", source, err)
	}
	if info.IsDir() {
		return LoadDir(source)
	}
	if strings.EqualFold(filepath.Ext(source), ".pdf") {
		return LoadPDF(source)
	}
	doc, err := LoadTextFile(source)
	if err != nil {
		return nil, err
	}
	return []rag.Document{doc}, nil
}

// LoadAll loads every source and concatenates the results. The first error
// aborts the load; partial failure handling belongs to the ingestion
// pipeline, not the loader.
func LoadAll(ctx context.Context, sources []string) ([]rag.Document, error) {
	var docs []rag.Document
	for _, src := range sources {
		loaded, err := Load(ctx, src)
		if err != nil {
			return nil, err
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}
