package claim

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SynonymMap normalizes incident-type and hazard vocabulary to a single canonical
// tag. Configurable, not hard-coded into the extractors that populate claims.
var SynonymMap = map[string]string{
	"gun shot":    "gunshot",
	"gunshots":    "gunshot",
	"shooting":    "gunshot",
	"heart attack": "medical",
	"break in":    "break-in",
	"breakin":     "break-in",
}

// wordNumbers maps spelled-out and vague quantities to their canonical integer,
// per the deterministic extractor's people-estimate rule. "Several" and "multiple"
// are deliberately distinct canonical values, not aliases of one another.
var wordNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"several": 3, "multiple": 2, "a few": 3, "many": 5, "couple": 2,
}

// CanonicalString normalizes a string value for use as a merge key: NFC form,
// trimmed, lowercased, internal whitespace collapsed, then synonym-mapped.
// Idempotent: CanonicalString(CanonicalString(s)) == CanonicalString(s).
func CanonicalString(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	if mapped, ok := SynonymMap[s]; ok {
		s = mapped
	}
	return s
}

// CanonicalNumber parses a numeric claim value (word, digit string, or float64)
// and rounds it to the nearest non-negative integer, returning its canonical
// string key (so "several" and "multiple" remain distinct canonical values
// even though both denote small integers).
func CanonicalNumber(v any) (canonical string, numeric float64, err error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		word := strings.ToLower(strings.TrimSpace(x))
		if n, ok := wordNumbers[word]; ok {
			f = n
		} else if parsed, perr := strconv.ParseFloat(word, 64); perr == nil {
			f = parsed
		} else {
			return "", 0, fmt.Errorf("%w: unparseable number %q", ErrInvalidClaim, x)
		}
	default:
		return "", 0, fmt.Errorf("%w: unsupported number type %T", ErrInvalidClaim, v)
	}
	if f < 0 {
		f = 0
	}
	rounded := math.Round(f)
	return strconv.FormatFloat(rounded, 'f', 0, 64), rounded, nil
}

// ClampConfidence returns an error if confidence lies outside [0,1]: out-of-range
// confidence is an input error (InvalidClaim), not a value to silently clamp.
func ClampConfidence(c float64) (float64, error) {
	if c < 0 || c > 1 {
		return 0, ErrInvalidClaim
	}
	return c, nil
}

// Canonicalize rewrites a claim's Value into its canonical display form:
// people_estimate is rounded to its numeric value ("several" -> 3.0, keeping
// "several" and "multiple" distinct per their different wordNumbers entries);
// every other type keeps its extracted text as-is. The merge key is computed
// separately by CanonicalKey and is not affected by this rewrite.
func Canonicalize(c Claim) (Claim, error) {
	if c.Type != TypePeopleEstimate {
		return c, nil
	}
	_, numeric, err := CanonicalNumber(c.Value)
	if err != nil {
		return c, err
	}
	c.Value = numeric
	return c, nil
}

// CanonicalKey computes the merge key for a claim: the canonical string for
// string-valued types, or the canonical numeric key for people_estimate. An
// empty canonical form (e.g. a value that trims to nothing) is InvalidClaim.
func CanonicalKey(t Type, value any) (string, error) {
	switch t {
	case TypePeopleEstimate:
		key, _, err := CanonicalNumber(value)
		if err != nil {
			return "", err
		}
		return key, nil
	default:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a string value", ErrInvalidClaim, t)
		}
		key := CanonicalString(s)
		if key == "" {
			return "", ErrInvalidClaim
		}
		return key, nil
	}
}
