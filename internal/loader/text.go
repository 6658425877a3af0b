package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// textExtensions lists the file extensions LoadDir treats as plain text.
var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// LoadTextFile reads one file as a single document.
func LoadTextFile(path string) (rag.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rag.Document{}, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return rag.Document{
		Source: path,
		Text:   strings.TrimSpace(string(data)),
	}, nil
}

// LoadDir walks a directory tree and loads every text and PDF file it
// recognizes. Other files are skipped silently so corpus directories can
// carry images or notes without breaking ingestion.
func LoadDir(root string) ([]rag.Document, error) {
	var docs []rag.Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case ext == ".pdf":
			pages, err := LoadPDF(path)
			if err != nil {
				return err
			}
			docs = append(docs, pages...)
		case textExtensions[ext]:
			doc, err := LoadTextFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: walk %s: %w", root, err)
	}
	return docs, nil
}
