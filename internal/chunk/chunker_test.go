package chunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/kvasir-ai/ragline/internal/rag"
)

// newTestSplitter constructs a Splitter or fails the test.
func newTestSplitter(t *testing.T, cfg *Config) *Splitter {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	return s
}

func Test_New_RejectsOverlapNotSmallerThanMaxLength(t *testing.T) {
	t.Parallel()
	cases := []Config{
		{MaxLength: 100, Overlap: 100},
		{MaxLength: 100, Overlap: 150},
	}
	for _, cfg := range cases {
		if _, err := New(&cfg); !errors.Is(err, rag.ErrInvalidConfig) {
			t.Errorf("New(max=%d overlap=%d): want ErrInvalidConfig, got %v", cfg.MaxLength, cfg.Overlap, err)
		}
	}
}

func Test_New_RejectsNonPositiveParams(t *testing.T) {
	t.Parallel()
	cases := []Config{
		{MaxLength: -1, Overlap: 10},
		{MaxLength: 0, Overlap: 10},
		{MaxLength: 100, Overlap: -1},
		{MaxLength: 100, Overlap: 0},
		{MaxLength: 100, Overlap: 10, MinWords: -1},
	}
	for _, cfg := range cases {
		if _, err := New(&cfg); !errors.Is(err, rag.ErrInvalidConfig) {
			t.Errorf("New(%+v): want ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func Test_New_NilConfigUsesDefaults(t *testing.T) {
	t.Parallel()
	s, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if s.maxLength != DefaultMaxLength || s.overlap != DefaultOverlap || s.minWords != DefaultMinWords {
		t.Errorf("defaults not applied: max=%d overlap=%d minWords=%d", s.maxLength, s.overlap, s.minWords)
	}
}

func Test_Split_ChunkLengthNeverExceedsMax(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 50, Overlap: 10})
	doc := &rag.Document{Source: "doc", Text: strings.Repeat("abcdefghij", 37)}

	for i, c := range s.Split(doc) {
		if n := len([]rune(c.Text)); n > 50 {
			t.Errorf("chunk %d length %d exceeds max 50", i, n)
		}
	}
}

func Test_Split_ConsecutiveChunksShareExactOverlap(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 40, Overlap: 15})
	doc := &rag.Document{Source: "doc", Text: strings.Repeat("0123456789", 20)}

	chunks := s.Split(doc)
	if len(chunks) < 2 {
		t.Fatalf("want at least 2 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		tail := string(prev[len(prev)-15:])
		head := string(cur[:15])
		if tail != head {
			t.Errorf("chunks %d/%d: overlap mismatch: tail %q, head %q", i-1, i, tail, head)
		}
	}
}

func Test_Split_RoundTripReconstructsText(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 30, Overlap: 7})
	text := "the quick brown fox jumps over the lazy dog again and again until the sentence is long enough to need several windows"
	doc := &rag.Document{Source: "doc", Text: text}

	chunks := s.Split(doc)
	var sb strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Text)
		if i == 0 {
			sb.WriteString(c.Text)
		} else {
			sb.WriteString(string(runes[7:]))
		}
	}
	if sb.String() != text {
		t.Errorf("round trip mismatch:\nwant %q\ngot  %q", text, sb.String())
	}
}

func Test_Split_ShortDocumentYieldsSingleChunk(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 500, Overlap: 150})
	doc := &rag.Document{Source: "pasta", Text: "To cook pasta, boil water, add salt, then put pasta until soft."}

	chunks := s.Split(doc)
	if len(chunks) != 1 {
		t.Fatalf("want exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != doc.Text {
		t.Errorf("chunk text: want %q, got %q", doc.Text, chunks[0].Text)
	}
	if chunks[0].Ordinal != 0 {
		t.Errorf("ordinal: want 0, got %d", chunks[0].Ordinal)
	}
}

func Test_Split_EmptyDocumentYieldsNoChunks(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, nil)
	if chunks := s.Split(&rag.Document{Source: "empty", Text: "   \n  "}); len(chunks) != 0 {
		t.Errorf("want 0 chunks, got %d", len(chunks))
	}
}

func Test_Split_Deterministic(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 25, Overlap: 5})
	doc := &rag.Document{Source: "doc", Text: strings.Repeat("words of some text ", 10)}

	a := s.Split(doc)
	b := s.Split(doc)
	if len(a) != len(b) {
		t.Fatalf("chunk count differs between runs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Ordinal != b[i].Ordinal {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func Test_Split_CopiesParentMetadata(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 20, Overlap: 4})
	doc := &rag.Document{
		Source:   "book.pdf",
		Text:     strings.Repeat("z", 50),
		Metadata: map[string]string{"page": "3", "title": "Cooking"},
	}

	chunks := s.Split(doc)
	for i, c := range chunks {
		if c.Metadata["page"] != "3" || c.Metadata["title"] != "Cooking" {
			t.Errorf("chunk %d: parent metadata not carried: %v", i, c.Metadata)
		}
		if c.Metadata["chunk_ordinal"] == "" {
			t.Errorf("chunk %d: missing chunk_ordinal", i)
		}
	}
	// Mutating a chunk's metadata must not leak into the document.
	chunks[0].Metadata["page"] = "changed"
	if doc.Metadata["page"] != "3" {
		t.Error("chunk metadata mutation leaked into parent document")
	}
}

func Test_Admit_FiltersShortDocuments(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 500, Overlap: 150, MinWords: 20})

	short := &rag.Document{Source: "blank", Text: "almost empty page"}
	if s.Admit(short) {
		t.Error("short document should not be admitted")
	}

	long := &rag.Document{Source: "full", Text: strings.Repeat("word ", 25)}
	if !s.Admit(long) {
		t.Error("long document should be admitted")
	}
}

func Test_Admit_DisabledWhenMinWordsZero(t *testing.T) {
	t.Parallel()
	s := newTestSplitter(t, &Config{MaxLength: 100, Overlap: 10, MinWords: 0})
	if !s.Admit(&rag.Document{Source: "tiny", Text: "x"}) {
		t.Error("pre-filter should be disabled when MinWords is 0")
	}
}
