// Package cluster decides which incident a new transcript chunk belongs to,
// blending embedding similarity, an LLM same-incident judgment, time
// proximity, and geo proximity into a single combined score.
package cluster

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentrysystems/incident-engine/internal/pkg/metrics"
)

// Embedder produces a fixed-length embedding vector for a string. Production
// wiring is OpenAIEmbedder; its absence (no OPENAI_API_KEY) degrades the
// embedding signal to zero contribution with weight renormalization.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Judge returns a single same-incident likelihood in [0,1] for a candidate.
// Its absence degrades the LLM signal the same way as a missing Embedder.
type Judge interface {
	Judge(ctx context.Context, reportText, candidateSummary string) (float64, error)
}

// Candidate is an existing incident as seen by the clustering engine: just
// enough to score it, never the incident's lock or internal state.
type Candidate struct {
	IncidentID  string
	Summary     string
	LastUpdated time.Time
	Lat, Lng    *float64
}

// Weights are the four signal weights from the clustering contract, in the
// fixed order emb,llm,time,geo. They need not sum to 1; Assign renormalizes
// over whichever signals are actually available for a given candidate.
type Weights struct {
	Embedding float64
	LLM       float64
	Time      float64
	Geo       float64
}

// DefaultWeights matches CLUSTER_WEIGHTS' documented default.
var DefaultWeights = Weights{Embedding: 0.35, LLM: 0.35, Time: 0.15, Geo: 0.15}

// Engine runs the assign() decision for a single incoming report.
type Engine struct {
	Embedder Embedder
	Judge    Judge

	Weights      Weights
	Threshold    float64
	MinEmbedding float64 // 0 disables the floor
	MinLLM       float64 // 0 disables the floor

	Logger *slog.Logger

	cache *embeddingCache
}

// NewEngine builds a clustering engine. Embedder and Judge may be nil, in
// which case their signals contribute 0 and are excluded from renormalization.
func NewEngine(embedder Embedder, judge Judge, weights Weights, threshold float64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Embedder: embedder, Judge: judge, Weights: weights, Threshold: threshold,
		Logger: logger, cache: newEmbeddingCache(),
	}
}

// score holds one candidate's per-signal results for Assign's tie-break rules.
type score struct {
	candidate Candidate
	combined  float64
	embedding float64
	hasEmb    bool
	llm       float64
	hasLLM    bool
}

// Assign scores reportText against every candidate and decides whether to
// join the best match or open a new incident. It never mutates the store;
// the caller (the ingestion coordinator) applies the decision.
func (e *Engine) Assign(ctx context.Context, reportText string, now time.Time, deviceLat, deviceLng *float64, candidates []Candidate) (incidentID string, combinedScore float64, isNew bool) {
	start := time.Now()
	defer func() {
		metrics.ClusterAssignDurationSeconds.Observe(time.Since(start).Seconds())
		outcome := "joined"
		switch {
		case e.Embedder == nil && e.Judge == nil:
			outcome = "degraded"
		case isNew:
			outcome = "new"
		}
		metrics.ClusterAssignTotal.WithLabelValues(outcome).Inc()
	}()

	if len(candidates) == 0 {
		return "", 0, true
	}

	var reportEmbedding []float32
	if e.Embedder != nil {
		if v, ok := e.cache.get(reportText); ok {
			reportEmbedding = v
		} else if v, err := e.embedWithTimeout(ctx, reportText); err == nil {
			reportEmbedding = v
			e.cache.put(reportText, v)
		} else {
			e.Logger.Warn("clustering degraded: embedding unavailable", "error", err)
		}
	}

	scores := make([]score, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			scores[i] = e.scoreCandidate(gctx, reportText, reportEmbedding, now, deviceLat, deviceLng, cand)
			return nil
		})
	}
	_ = g.Wait() // per-candidate errors are absorbed into degraded signal scores, never fatal

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].combined != scores[j].combined {
			return scores[i].combined > scores[j].combined
		}
		if scores[i].embedding != scores[j].embedding {
			return scores[i].embedding > scores[j].embedding
		}
		return scores[i].candidate.LastUpdated.After(scores[j].candidate.LastUpdated)
	})

	best := scores[0]
	if best.combined >= e.Threshold &&
		(e.MinEmbedding <= 0 || (best.hasEmb && best.embedding >= e.MinEmbedding)) &&
		(e.MinLLM <= 0 || (best.hasLLM && best.llm >= e.MinLLM)) {
		return best.candidate.IncidentID, best.combined, false
	}
	return "", best.combined, true
}

func (e *Engine) scoreCandidate(ctx context.Context, reportText string, reportEmbedding []float32, now time.Time, deviceLat, deviceLng *float64, cand Candidate) score {
	var weightSum float64
	var weighted float64
	s := score{candidate: cand}

	if reportEmbedding != nil {
		var candEmbedding []float32
		if v, ok := e.cache.get(cand.Summary); ok {
			candEmbedding = v
		} else if v, err := e.embedWithTimeout(ctx, cand.Summary); err == nil {
			candEmbedding = v
			e.cache.put(cand.Summary, v)
		}
		if candEmbedding != nil {
			sim := cosineSimilarity(reportEmbedding, candEmbedding)
			s.embedding = sim
			s.hasEmb = true
			weighted += e.Weights.Embedding * sim
			weightSum += e.Weights.Embedding
		}
	}

	if e.Judge != nil {
		if v, err := e.judgeWithTimeout(ctx, reportText, cand.Summary); err == nil {
			s.llm = v
			s.hasLLM = true
			weighted += e.Weights.LLM * v
			weightSum += e.Weights.LLM
		} else {
			e.Logger.Warn("clustering degraded: judge unavailable", "error", err)
		}
	}

	timeScore := TimeProximity(now, cand.LastUpdated)
	weighted += e.Weights.Time * timeScore
	weightSum += e.Weights.Time

	if geoScore, ok := GeoProximity(deviceLat, deviceLng, cand.Lat, cand.Lng); ok {
		weighted += e.Weights.Geo * geoScore
		weightSum += e.Weights.Geo
	}

	if weightSum == 0 {
		s.combined = 0
		return s
	}
	s.combined = weighted / weightSum
	return s
}

func (e *Engine) embedWithTimeout(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	return e.Embedder.Embed(ctx, text)
}

func (e *Engine) judgeWithTimeout(ctx context.Context, reportText, candidateSummary string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	return e.Judge.Judge(ctx, reportText, candidateSummary)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
