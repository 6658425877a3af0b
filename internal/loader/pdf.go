package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// LoadPDF extracts a PDF into one rag.Document per page. Pages get a
// distinct source (path#page=N) so their chunk IDs never collide, plus a
// "page" metadata field for filtering. Pages with no extractable text are
// skipped.
func LoadPDF(path string) ([]rag.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("loader: stat %s: %w", path, err)
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("loader: open PDF %s: %v: %w", path, err, rag.ErrInvalidInput)
	}

	numPages := r.NumPage()
	docs := make([]rag.Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("loader: extract page %d of %s: %w", i, path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, rag.Document{
			Source: fmt.Sprintf("%s#page=%d", path, i),
			Text:   text,
			Metadata: map[string]string{
				"file": path,
				"page": strconv.Itoa(i),
			},
		})
	}

	return docs, nil
}
