package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
	"github.com/sentrysystems/incident-engine/internal/pkg/metrics"
)

// IncidentTypeRule maps a set of keywords to one canonical incident type tag.
type IncidentTypeRule struct {
	Keywords  []string
	Canonical string
}

// DeterministicRules is the configurable table the deterministic extractor
// runs over lowercased text. It is data, not control flow, so operators and
// tests can override the vocabulary without touching extraction logic.
type DeterministicRules struct {
	IncidentTypes          []IncidentTypeRule
	IncidentTypeConfidence float64

	HazardKeywords    []string
	HazardConfidence  float64

	LocationConfidence float64

	PeopleEstimateConfidence float64
}

// DefaultRules is the fixed ordered rule set from the extraction contract:
// incident type keywords (first match wins), hazard keywords, and the
// location/people-estimate patterns applied by the regexes below.
var DefaultRules = DeterministicRules{
	IncidentTypes: []IncidentTypeRule{
		{Keywords: []string{"fire"}, Canonical: "fire"},
		{Keywords: []string{"gun", "gunshot", "shooting"}, Canonical: "gunshot"},
		{Keywords: []string{"medical", "heart attack"}, Canonical: "medical"},
		{Keywords: []string{"assault"}, Canonical: "assault"},
		{Keywords: []string{"gas leak"}, Canonical: "gas leak"},
		{Keywords: []string{"flood"}, Canonical: "flood"},
		{Keywords: []string{"collapse"}, Canonical: "collapse"},
		{Keywords: []string{"accident"}, Canonical: "accident"},
		{Keywords: []string{"break-in", "break in"}, Canonical: "break-in"},
		{Keywords: []string{"missing"}, Canonical: "missing"},
		{Keywords: []string{"overdose"}, Canonical: "overdose"},
		{Keywords: []string{"suicide"}, Canonical: "suicide"},
	},
	IncidentTypeConfidence: 0.7,

	HazardKeywords:   []string{"smoke", "fire", "gas", "collapse", "flood", "explosion", "weapon", "suspect"},
	HazardConfidence: 0.5,

	LocationConfidence: 0.55,

	PeopleEstimateConfidence: 0.6,
}

var (
	prepositionLocationRe = regexp.MustCompile(`(?:\b(?:on|at|near|in|inside)\b)\s+the\s+((?:\w+\s*){1,6})`)
	ordinalFloorRe        = regexp.MustCompile(`\b(\w+)\s+floor\b`)
	buildingNameRe        = regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)+)\b`)
	peopleEstimateRe      = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten|several|multiple|a few|many|couple)\s+(people|persons|victims|trapped|injured)\b`)
)

// Deterministic runs a fixed ordered rule set over lowercased text: no
// network calls, always available, used as the fallback for the LLM
// extractor and as the default when OPENAI_API_KEY is unset.
type Deterministic struct {
	Rules DeterministicRules
}

// NewDeterministic builds a Deterministic extractor with the default rule table.
func NewDeterministic() *Deterministic {
	return &Deterministic{Rules: DefaultRules}
}

func (d *Deterministic) Name() string { return "deterministic" }

func (d *Deterministic) Extract(_ context.Context, text string, now time.Time) ([]claim.Claim, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractionDurationSeconds.WithLabelValues("deterministic").Observe(time.Since(start).Seconds())
	}()

	lower := strings.ToLower(text)
	var claims []claim.Claim

	if rule, ok := firstIncidentTypeMatch(lower, d.Rules.IncidentTypes); ok {
		claims = append(claims, claim.Claim{
			Type: claim.TypeIncidentType, Value: rule.Canonical,
			Confidence: d.Rules.IncidentTypeConfidence, SourceText: text, Time: now,
		})
	}

	for _, loc := range extractLocations(text) {
		claims = append(claims, claim.Claim{
			Type: claim.TypeLocation, Value: loc,
			Confidence: d.Rules.LocationConfidence, SourceText: text, Time: now,
		})
	}

	if m := peopleEstimateRe.FindStringSubmatch(lower); m != nil {
		claims = append(claims, claim.Claim{
			Type: claim.TypePeopleEstimate, Value: m[1],
			Confidence: d.Rules.PeopleEstimateConfidence, SourceText: text, Time: now,
		})
	}

	for _, kw := range d.Rules.HazardKeywords {
		if strings.Contains(lower, kw) {
			claims = append(claims, claim.Claim{
				Type: claim.TypeHazard, Value: kw,
				Confidence: d.Rules.HazardConfidence, SourceText: text, Time: now,
			})
		}
	}

	return claims, nil
}

func firstIncidentTypeMatch(lower string, rules []IncidentTypeRule) (IncidentTypeRule, bool) {
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule, true
			}
		}
	}
	return IncidentTypeRule{}, false
}

// extractLocations applies the three location patterns against the original
// (mixed-case) text, since the building-name pattern relies on capitalization.
func extractLocations(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	if m := prepositionLocationRe.FindStringSubmatch(text); m != nil {
		add(m[1])
	}
	if m := ordinalFloorRe.FindStringSubmatch(text); m != nil {
		add(m[0])
	}
	if m := buildingNameRe.FindStringSubmatch(text); m != nil {
		add(m[1])
	}
	return out
}
