package cluster

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type fakeJudge struct {
	score float64
	err   error
}

func (f fakeJudge) Judge(_ context.Context, _, _ string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.score, nil
}

func TestAssignNoCandidatesIsNew(t *testing.T) {
	e := NewEngine(nil, nil, DefaultWeights, 0.65, nil)
	id, score, isNew := e.Assign(context.Background(), "fire on third floor", time.Now(), nil, nil, nil)
	if !isNew || id != "" || score != 0 {
		t.Errorf("Assign(no candidates) = (%q, %v, %v), want new incident", id, score, isNew)
	}
}

func TestAssignJoinsOnGeoAndTimeWhenNoLLMSignals(t *testing.T) {
	// Scenario 3: identical device coordinates, texts within a minute of each
	// other, no embedding/LLM provider configured -- time+geo alone must clear
	// the default 0.65 threshold once renormalized over just those two signals.
	e := NewEngine(nil, nil, DefaultWeights, 0.65, nil)
	now := time.Now()
	lat, lng := 51.5074, -0.1278
	candidates := []Candidate{
		{IncidentID: "inc-1", Summary: "fire third floor", LastUpdated: now.Add(-30 * time.Second), Lat: &lat, Lng: &lng},
	}
	id, score, isNew := e.Assign(context.Background(), "smoke in east wing", now, &lat, &lng, candidates)
	if isNew {
		t.Fatalf("expected join, got new incident (score=%v)", score)
	}
	if id != "inc-1" {
		t.Errorf("incidentID = %q, want inc-1", id)
	}
	if score < 0.65 {
		t.Errorf("combined score = %v, want >= 0.65", score)
	}
}

func TestAssignRefusesOnDistantGeo(t *testing.T) {
	// Scenario 4: same text, one reading near London, the other in NYC, one
	// minute apart. Geo collapses to the lowest bucket and the join refuses.
	e := NewEngine(nil, nil, DefaultWeights, 0.65, nil)
	now := time.Now()
	lat1, lng1 := 51.50, -0.12
	lat2, lng2 := 40.71, -74.00
	candidates := []Candidate{
		{IncidentID: "inc-1", Summary: "fire third floor", LastUpdated: now.Add(-time.Minute), Lat: &lat1, Lng: &lng1},
	}
	_, score, isNew := e.Assign(context.Background(), "fire third floor", now, &lat2, &lng2, candidates)
	if !isNew {
		t.Errorf("expected new incident, got join with score %v", score)
	}
}

func TestAssignUsesEmbeddingAndJudgeWhenAvailable(t *testing.T) {
	emb := fakeEmbedder{vectors: map[string][]float32{
		"report":    {1, 0, 0},
		"candidate": {1, 0, 0},
	}}
	judge := fakeJudge{score: 0.9}
	e := NewEngine(emb, judge, DefaultWeights, 0.65, nil)
	now := time.Now()
	candidates := []Candidate{
		{IncidentID: "inc-1", Summary: "candidate", LastUpdated: now},
	}
	id, score, isNew := e.Assign(context.Background(), "report", now, nil, nil, candidates)
	if isNew || id != "inc-1" {
		t.Fatalf("expected join to inc-1, got isNew=%v id=%q", isNew, id)
	}
	if score < 0.9 {
		t.Errorf("combined score = %v, want high given perfect embedding+judge agreement", score)
	}
}

func TestAssignDegradesGracefullyOnEmbedderError(t *testing.T) {
	emb := fakeEmbedder{err: errors.New("provider down")}
	judge := fakeJudge{score: 0.9}
	e := NewEngine(emb, judge, DefaultWeights, 0.65, nil)
	now := time.Now()
	candidates := []Candidate{
		{IncidentID: "inc-1", Summary: "candidate", LastUpdated: now},
	}
	id, _, isNew := e.Assign(context.Background(), "report", now, nil, nil, candidates)
	if isNew || id != "inc-1" {
		t.Errorf("expected join using judge+time alone despite embedder failure, got isNew=%v id=%q", isNew, id)
	}
}

func TestAssignMinEmbeddingFloorBlocksJoin(t *testing.T) {
	emb := fakeEmbedder{vectors: map[string][]float32{
		"report":    {1, 0, 0},
		"candidate": {0, 1, 0},
	}}
	judge := fakeJudge{score: 0.95}
	e := NewEngine(emb, judge, DefaultWeights, 0.5, nil)
	e.MinEmbedding = 0.5
	now := time.Now()
	candidates := []Candidate{
		{IncidentID: "inc-1", Summary: "candidate", LastUpdated: now},
	}
	_, _, isNew := e.Assign(context.Background(), "report", now, nil, nil, candidates)
	if !isNew {
		t.Error("expected MinEmbedding floor to block the join despite a high combined score")
	}
}

func TestAssignTieBreakPrefersHigherEmbeddingThenMoreRecent(t *testing.T) {
	emb := fakeEmbedder{vectors: map[string][]float32{
		"report": {1, 0, 0},
		"best":   {1, 0, 0},
		"worst":  {0, 1, 0},
	}}
	e := NewEngine(emb, nil, DefaultWeights, 0, nil)
	now := time.Now()
	candidates := []Candidate{
		{IncidentID: "older-best", Summary: "best", LastUpdated: now.Add(-time.Hour)},
		{IncidentID: "newer-best", Summary: "best", LastUpdated: now},
		{IncidentID: "worst", Summary: "worst", LastUpdated: now},
	}
	id, _, isNew := e.Assign(context.Background(), "report", now, nil, nil, candidates)
	if isNew {
		t.Fatal("expected a join given threshold 0")
	}
	if id != "newer-best" {
		t.Errorf("tie-break picked %q, want newer-best (higher embedding, more recent)", id)
	}
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("cosineSimilarity(orthogonal) = %v, want 0", got)
	}
}

func TestCosineSimilarityIdenticalIsOne(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}); got < 0.999 {
		t.Errorf("cosineSimilarity(identical) = %v, want ~1", got)
	}
}

func TestCosineSimilarityMismatchedLengthIsZero(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("cosineSimilarity(mismatched length) = %v, want 0", got)
	}
}
