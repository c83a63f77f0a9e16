package extract

import (
	"context"
	"testing"
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
)

func TestDeterministicExtractIncidentType(t *testing.T) {
	d := NewDeterministic()
	claims, err := d.Extract(context.Background(), "There's a fire on the third floor.", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, c := range claims {
		if c.Type == claim.TypeIncidentType {
			found = true
			if c.Value != "fire" {
				t.Errorf("incident_type = %v, want fire", c.Value)
			}
			if c.Confidence != 0.7 {
				t.Errorf("confidence = %v, want 0.7", c.Confidence)
			}
		}
	}
	if !found {
		t.Error("expected an incident_type claim")
	}
}

func TestDeterministicExtractOrdinalFloorLocation(t *testing.T) {
	d := NewDeterministic()
	claims, _ := d.Extract(context.Background(), "There's a fire on the third floor.", time.Now())
	found := false
	for _, c := range claims {
		if c.Type == claim.TypeLocation {
			found = true
		}
	}
	if !found {
		t.Error("expected a location claim for 'third floor'")
	}
}

func TestDeterministicExtractPeopleEstimateWords(t *testing.T) {
	d := NewDeterministic()
	claims, _ := d.Extract(context.Background(), "several people trapped inside", time.Now())
	var got *claim.Claim
	for i := range claims {
		if claims[i].Type == claim.TypePeopleEstimate {
			got = &claims[i]
		}
	}
	if got == nil {
		t.Fatal("expected a people_estimate claim")
	}
	if got.Value != "several" {
		t.Errorf("value = %v, want several", got.Value)
	}
}

func TestDeterministicExtractHazards(t *testing.T) {
	d := NewDeterministic()
	claims, _ := d.Extract(context.Background(), "smoke and gas everywhere", time.Now())
	hazards := 0
	for _, c := range claims {
		if c.Type == claim.TypeHazard {
			hazards++
		}
	}
	if hazards < 2 {
		t.Errorf("expected at least 2 hazard claims, got %d", hazards)
	}
}

func TestDeterministicExtractEmptyChatterHasNoIncidentContent(t *testing.T) {
	d := NewDeterministic()
	claims, _ := d.Extract(context.Background(), "Hello, can you hear me?", time.Now())
	if HasIncidentContent(claims) {
		t.Error("empty chatter should not produce incident content")
	}
}
