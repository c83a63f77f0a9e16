package extract

import "strings"

const (
	// groundedCap is the confidence ceiling for an LLM-extracted string value
	// that is substantively present in the source text.
	groundedCap = 0.9
	// ungroundedCap is the ceiling applied when grounding fails; the value is
	// kept (it may still be useful) but distrusted.
	ungroundedCap = 0.35
)

// grounded reports whether value is substantively present in text: either as
// a direct substring, or via majority token overlap for multi-word values
// (so minor paraphrasing of an otherwise-stated location still grounds).
func grounded(value, text string) bool {
	v := normalizeForGrounding(value)
	t := normalizeForGrounding(text)
	if v == "" {
		return false
	}
	if strings.Contains(t, v) {
		return true
	}

	vTokens := strings.Fields(v)
	if len(vTokens) == 0 {
		return false
	}
	tTokens := make(map[string]bool)
	for _, tok := range strings.Fields(t) {
		tTokens[tok] = true
	}
	matched := 0
	for _, tok := range vTokens {
		if tTokens[tok] {
			matched++
		}
	}
	return float64(matched)/float64(len(vTokens)) > 0.5
}

func normalizeForGrounding(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// capByGrounding returns confidence capped per the hallucination-grounding
// rule: groundedCap if value is grounded in text, ungroundedCap otherwise.
// The original confidence is never raised, only capped downward.
func capByGrounding(value, text string, confidence float64) float64 {
	cap := ungroundedCap
	if grounded(value, text) {
		cap = groundedCap
	}
	if confidence > cap {
		return cap
	}
	return confidence
}
