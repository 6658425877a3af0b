package ingestion

import (
	"net/url"
	"path"
	"strings"
)

// InferredMetadata holds the origin, format, and doc type inferred from a
// document's source string. Caller-supplied metadata takes precedence over
// inferred values; this is the best-effort fallback when the user doesn't
// specify explicit metadata.
type InferredMetadata struct {
	// Origin is where the document came from (file, url).
	Origin string
	// Format is the content format (pdf, markdown, html, text).
	Format string
	// DocType classifies the document kind (recipe, article, reference).
	DocType string
}

// extensionFormats maps file extensions to our canonical format label.
var extensionFormats = map[string]string{
	".pdf":      "pdf",
	".md":       "markdown",
	".markdown": "markdown",
	".html":     "html",
	".htm":      "html",
	".txt":      "text",
	".text":     "text",
}

// InferMetadata inspects a document source (file path or URL) and returns
// best-effort metadata. Unrecognized sources get sensible defaults
// ("file", "text", "reference").
func InferMetadata(source string) InferredMetadata {
	m := InferredMetadata{
		Origin:  "file",
		Format:  "text",
		DocType: "reference",
	}

	target := source
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		m.Origin = "url"
		m.Format = "html"
		if parsed, err := url.Parse(source); err == nil {
			target = parsed.Path
			inferURLDocType(parsed.Path, &m)
		}
	}

	if format, ok := extensionFormats[strings.ToLower(path.Ext(target))]; ok {
		m.Format = format
	}

	return m
}

// inferURLDocType classifies a URL by its path segments.
func inferURLDocType(urlPath string, m *InferredMetadata) {
	for _, seg := range trimSegments(strings.ToLower(urlPath)) {
		switch seg {
		case "recipes", "recipe", "cooking":
			m.DocType = "recipe"
			return
		case "blog", "articles", "news":
			m.DocType = "article"
			return
		case "docs", "reference", "manual":
			m.DocType = "reference"
			return
		}
	}
}

// AsMap returns the inferred metadata as filterable key/value pairs,
// skipping keys already present in existing.
func (m InferredMetadata) AsMap(existing map[string]string) map[string]string {
	out := map[string]string{
		"origin":   m.Origin,
		"format":   m.Format,
		"doc_type": m.DocType,
	}
	for k, v := range existing {
		out[k] = v
	}
	return out
}

// trimSegments splits a URL path into non-empty lowercase segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
