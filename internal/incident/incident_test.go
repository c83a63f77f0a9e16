package incident

import (
	"math"
	"testing"
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestApplyFireRepetitionRaisesConfidence(t *testing.T) {
	inc := New("inc-1", time.Now())
	now := time.Now()

	_, snap := inc.Apply([]claim.Claim{
		{Type: claim.TypeIncidentType, Value: "fire", Confidence: 0.7, SourceText: "There's a fire on the third floor.", Time: now},
	}, now)
	if snap.IncidentType == nil || !approxEqual(snap.IncidentType.Confidence, 0.7, 1e-9) {
		t.Fatalf("expected incident_type confidence 0.7, got %+v", snap.IncidentType)
	}

	now2 := now.Add(5 * time.Second)
	_, snap2 := inc.Apply([]claim.Claim{
		{Type: claim.TypeIncidentType, Value: "fire", Confidence: 0.7, SourceText: "Fire is spreading.", Time: now2},
	}, now2)
	if snap2.IncidentType == nil || !approxEqual(snap2.IncidentType.Confidence, 0.91, 0.02) {
		t.Fatalf("expected incident_type confidence ~0.91, got %+v", snap2.IncidentType)
	}
}

func TestApplyTimelineLengthMatchesClaimsApplied(t *testing.T) {
	inc := New("inc-2", time.Now())
	now := time.Now()
	claims := []claim.Claim{
		{Type: claim.TypeIncidentType, Value: "fire", Confidence: 0.7, Time: now},
		{Type: claim.TypeHazard, Value: "smoke", Confidence: 0.5, Time: now},
		{Type: claim.TypeLocation, Value: "", Confidence: 0.5, Time: now}, // invalid: blank value
	}
	applied, snap := inc.Apply(claims, now)
	if applied != 2 {
		t.Errorf("applied = %d, want 2 (blank location should be dropped)", applied)
	}
	if len(snap.Timeline) != 2 {
		t.Errorf("timeline length = %d, want 2", len(snap.Timeline))
	}
}

func TestApplyRecordsOneEventPerClaimRegardlessOfConfidenceChange(t *testing.T) {
	inc := New("inc-3", time.Now())
	now := time.Now()
	_, _ = inc.Apply([]claim.Claim{{Type: claim.TypeHazard, Value: "smoke", Confidence: 0.5, Time: now}}, now)
	// Repeat outside the boost window with a lower confidence: stored confidence
	// still only increases (Bayesian merge never decreases it), but a timeline
	// event must be recorded regardless.
	later := now.Add(2 * time.Hour)
	_, snap := inc.Apply([]claim.Claim{{Type: claim.TypeHazard, Value: "smoke", Confidence: 0.1, Time: later}}, later)
	if len(snap.Timeline) != 2 {
		t.Fatalf("timeline length = %d, want 2", len(snap.Timeline))
	}
	if snap.Hazards[0].Confidence < 0.5 {
		t.Errorf("hazard confidence must never decrease, got %v", snap.Hazards[0].Confidence)
	}
}

func TestApplyLastUpdatedNeverDecreases(t *testing.T) {
	inc := New("inc-4", time.Now())
	now := time.Now()
	_, snap1 := inc.Apply([]claim.Claim{{Type: claim.TypeHazard, Value: "smoke", Confidence: 0.5, Time: now}}, now)
	earlier := now.Add(-1 * time.Hour)
	_, snap2 := inc.Apply([]claim.Claim{{Type: claim.TypeHazard, Value: "fire", Confidence: 0.5, Time: earlier}}, now)
	if snap2.LastUpdated.Before(snap1.LastUpdated) {
		t.Errorf("last_updated decreased: %v -> %v", snap1.LastUpdated, snap2.LastUpdated)
	}
}

func TestApplyPeopleEstimateCanonicalKeysAreDistinct(t *testing.T) {
	inc := New("inc-5", time.Now())
	now := time.Now()
	_, snap1 := inc.Apply([]claim.Claim{{Type: claim.TypePeopleEstimate, Value: "several", Confidence: 0.6, Time: now}}, now)
	if snap1.PeopleEstimate == nil {
		t.Fatal("expected people_estimate to be set")
	}
	later := now.Add(time.Minute)
	_, snap2 := inc.Apply([]claim.Claim{{Type: claim.TypePeopleEstimate, Value: "multiple", Confidence: 0.9, Time: later}}, later)
	// "multiple" (0.9) clears the replacement margin over "several" (0.6), so it wins.
	if snap2.PeopleEstimate == nil || snap2.PeopleEstimate.Value != float64(2) {
		t.Fatalf("expected people_estimate to become 2 (canonical for 'multiple'), got %+v", snap2.PeopleEstimate)
	}
	if len(snap2.Timeline) != 2 {
		t.Errorf("both distinct canonical values must appear in the timeline, got %d events", len(snap2.Timeline))
	}
}

func TestApplyIncidentTypeAccumulatesPerCanonicalKeyAcrossLosingRounds(t *testing.T) {
	inc := New("inc-7", time.Now())
	now := time.Now()

	_, snap := inc.Apply([]claim.Claim{
		{Type: claim.TypeIncidentType, Value: "medical", Confidence: 0.5, Time: now},
	}, now)
	if snap.IncidentType == nil || snap.IncidentType.Value != "medical" {
		t.Fatalf("expected medical to be displayed, got %+v", snap.IncidentType)
	}

	// First gunshot mention (0.45) doesn't clear the replacement margin over
	// medical (0.5) and is kept off the display — but its confidence must not
	// be discarded: it has to keep accumulating for the next mention.
	t1 := now.Add(10 * time.Second)
	_, snap = inc.Apply([]claim.Claim{
		{Type: claim.TypeIncidentType, Value: "gunshot", Confidence: 0.45, Time: t1},
	}, t1)
	if snap.IncidentType == nil || snap.IncidentType.Value != "medical" {
		t.Fatalf("expected medical to still be displayed after one losing gunshot mention, got %+v", snap.IncidentType)
	}

	// A second independent gunshot mention, within the repeat window, compounds
	// on top of the first rather than being scored fresh at 0.45 again. That
	// compounded confidence now clears the replacement margin and unseats
	// medical.
	t2 := t1.Add(10 * time.Second)
	_, snap = inc.Apply([]claim.Claim{
		{Type: claim.TypeIncidentType, Value: "gunshot", Confidence: 0.45, Time: t2},
	}, t2)
	if snap.IncidentType == nil || snap.IncidentType.Value != "gunshot" {
		t.Fatalf("expected gunshot's accumulated confidence to unseat medical, got %+v", snap.IncidentType)
	}
	if !approxEqual(snap.IncidentType.Confidence, 0.725, 0.01) {
		t.Errorf("expected gunshot's accumulated confidence ~0.725, got %v", snap.IncidentType.Confidence)
	}
}

func TestApplyCallersRecordedOnFirstSight(t *testing.T) {
	inc := New("inc-6", time.Now())
	now := time.Now()
	inc.Apply([]claim.Claim{{Type: claim.TypeHazard, Value: "smoke", Confidence: 0.5, Time: now, CallerID: "c1", CallerInfo: "landline"}}, now)
	snap := inc.Snapshot()
	if info, ok := snap.Callers["c1"]; !ok || info != "landline" {
		t.Errorf("expected caller c1 recorded as landline, got %q, ok=%v", info, ok)
	}
}
