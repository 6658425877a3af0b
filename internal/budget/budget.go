// Package budget provides character-budget fitting for retrieved context and
// rough token estimation for prompt-size logging. Because the pipeline
// supports multiple completion backends with different tokenizers, token
// estimation uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose and code). This deliberately
// under-estimates so prompts leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Fit returns the length of the longest prefix of texts whose combined
// character count, with sepLen separator characters between consecutive
// entries, does not exceed maxChars. Texts must already be ordered most
// important first — the tail is what gets cut. A text is kept whole or not
// at all; Fit never splits an entry.
func Fit(texts []string, sepLen, maxChars int) int {
	if maxChars <= 0 {
		return 0
	}
	total := 0
	for i, t := range texts {
		cost := len(t)
		if i > 0 {
			cost += sepLen
		}
		if total+cost > maxChars {
			return i
		}
		total += cost
	}
	return len(texts)
}
