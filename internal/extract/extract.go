// Package extract turns a chunk of transcript text into a batch of claims.
// Extractor has two interchangeable implementations: a fixed-rule
// deterministic extractor, and an LLM-backed extractor with hallucination
// grounding that falls back to the deterministic one on any failure.
package extract

import (
	"context"
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
)

// Extractor transforms raw transcript text into zero or more Claims.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) ([]claim.Claim, error)
	// Name identifies the extractor ("llm" | "deterministic"), the same labels
	// /health reports; /health itself derives its value from whether
	// OPENAI_API_KEY is configured, not from this method.
	Name() string
}

// HasIncidentContent reports whether claims include at least one of
// incident_type, location, or hazard — the "no incident content" guard that
// lets the ingestion coordinator skip empty chatter.
func HasIncidentContent(claims []claim.Claim) bool {
	for _, c := range claims {
		switch c.Type {
		case claim.TypeIncidentType, claim.TypeLocation, claim.TypeHazard:
			return true
		}
	}
	return false
}
