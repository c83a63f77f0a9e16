// Package ingest implements the single entry operation of the engine: take a
// chunk of transcript text, resolve it to an incident (explicitly or via
// clustering), extract claims, apply them, and best-effort record the result.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
	"github.com/sentrysystems/incident-engine/internal/cluster"
	"github.com/sentrysystems/incident-engine/internal/extract"
	"github.com/sentrysystems/incident-engine/internal/incident"
	"github.com/sentrysystems/incident-engine/internal/pkg/metrics"
)

// ErrEmptyText is InvalidInput: a chunk cannot be ingested without text.
var ErrEmptyText = errors.New("ingest: text is empty")

const analyticsTimeout = 2 * time.Second

// deviceLocationValue is the placeholder canonicalization value for the
// single device-reported location slot; its coordinates, not this string,
// carry the information the incident cares about.
const deviceLocationValue = "device_location"

const deviceLocationConfidence = 0.95

// Chunk is one unit of transcript text arriving at the engine.
type Chunk struct {
	Text        string
	IncidentID  string
	AutoCluster bool
	CallerID    string
	CallerInfo  string
	DeviceLat   *float64
	DeviceLng   *float64
	OccurredAt  *time.Time
}

// Result is the outcome of ingesting one chunk.
type Result struct {
	IncidentID   string
	Snapshot     incident.Snapshot
	ClaimsAdded  int
	ClusterScore *float64
	ClusterNew   *bool
	Skipped      bool
}

// AnalyticsSink is the narrow capability the coordinator needs from the
// analytics layer: a best-effort, non-blocking record of one ingested chunk.
// It must never be allowed to fail the request; dispatchAnalytics logs and drops errors.
type AnalyticsSink interface {
	RecordChunk(ctx context.Context, ev ChunkEvent) error
}

// snapshotRecorder is the richer capability a sink may additionally provide:
// a full incident snapshot alongside the chunk event. Sinks that only
// implement AnalyticsSink (e.g. a test stub) simply don't get this call.
type snapshotRecorder interface {
	RecordSnapshot(ctx context.Context, snap incident.Snapshot) error
}

// ChunkEvent is the append-only analytics record for one ingested chunk.
type ChunkEvent struct {
	IncidentID   string
	ChunkPreview string
	ClusterScore *float64
	ClusterNew   *bool
	DeviceLat    *float64
	DeviceLng    *float64
	CallerID     string
	IngestedAt   time.Time
}

// Coordinator wires the store, extractor, and clustering engine into the
// ingest(chunk) operation. Analytics may be nil, in which case recording is
// skipped entirely (no sink configured).
type Coordinator struct {
	Store     *incident.Store
	Extractor extract.Extractor
	Cluster   *cluster.Engine
	Analytics AnalyticsSink
	Logger    *slog.Logger
}

// New builds a Coordinator. Analytics may be nil. Cluster is called without a
// nil check for every chunk that requests auto-clustering without an incident
// id, so it may be nil only if no such chunk is ever ingested.
func New(store *incident.Store, extractor extract.Extractor, clusterEngine *cluster.Engine, sink AnalyticsSink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{Store: store, Extractor: extractor, Cluster: clusterEngine, Analytics: sink, Logger: logger}
}

// Ingest runs the full chunk → incident pipeline described in the ingestion
// contract. It never blocks the response on an external service's failure.
func (co *Coordinator) Ingest(ctx context.Context, chunk Chunk) (Result, error) {
	if strings.TrimSpace(chunk.Text) == "" {
		return Result{}, ErrEmptyText
	}

	now := time.Now()
	occurredAt := now
	if chunk.OccurredAt != nil {
		occurredAt = *chunk.OccurredAt
	}

	var (
		inc          *incident.Incident
		clusterScore *float64
		clusterNew   *bool
		pendingNew   bool
	)

	if chunk.AutoCluster && chunk.IncidentID == "" {
		candidates := co.buildCandidates()
		id, score, isNew := co.Cluster.Assign(ctx, chunk.Text, now, chunk.DeviceLat, chunk.DeviceLng, candidates)
		scoreCopy, newCopy := score, isNew
		clusterScore, clusterNew = &scoreCopy, &newCopy
		if isNew {
			pendingNew = true
		} else if found, ok := co.Store.Get(id); ok {
			inc = found
		} else {
			pendingNew = true
		}
	} else {
		inc = co.Store.GetOrCreate(chunk.IncidentID, now)
	}

	claims, err := co.Extractor.Extract(ctx, chunk.Text, occurredAt)
	if err != nil {
		co.Logger.Warn("extraction failed", "error", err)
		claims = nil
	}

	if pendingNew && chunk.AutoCluster && !extract.HasIncidentContent(claims) {
		metrics.ChunksIngestedTotal.WithLabelValues("skipped").Inc()
		return Result{Skipped: true, ClusterScore: clusterScore, ClusterNew: clusterNew}, nil
	}

	if pendingNew {
		inc = co.Store.Create("", now)
	}

	if chunk.DeviceLat != nil && chunk.DeviceLng != nil {
		claims = append(claims, claim.Claim{
			Type:       claim.TypeDeviceLocation,
			Value:      deviceLocationValue,
			Confidence: deviceLocationConfidence,
			SourceText: chunk.Text,
			Time:       occurredAt,
			CallerID:   chunk.CallerID,
			CallerInfo: chunk.CallerInfo,
			Lat:        chunk.DeviceLat,
			Lng:        chunk.DeviceLng,
		})
	}

	for i := range claims {
		if claims[i].CallerID == "" {
			claims[i].CallerID = chunk.CallerID
		}
		if claims[i].CallerInfo == "" {
			claims[i].CallerInfo = chunk.CallerInfo
		}
	}

	applied, snap := inc.Apply(claims, occurredAt)

	co.dispatchAnalytics(chunk, inc.ID(), clusterScore, clusterNew, now, snap)
	metrics.ChunksIngestedTotal.WithLabelValues("applied").Inc()

	return Result{
		IncidentID:   inc.ID(),
		Snapshot:     snap,
		ClaimsAdded:  applied,
		ClusterScore: clusterScore,
		ClusterNew:   clusterNew,
	}, nil
}

func (co *Coordinator) buildCandidates() []cluster.Candidate {
	incidents := co.Store.List()
	candidates := make([]cluster.Candidate, 0, len(incidents))
	for _, inc := range incidents {
		snap := inc.Snapshot()
		cand := cluster.Candidate{
			IncidentID:  inc.ID(),
			Summary:     snap.SummaryString(),
			LastUpdated: inc.LastUpdated(),
		}
		if snap.DeviceLocation != nil && snap.DeviceLocation.HasCoordinates() {
			cand.Lat, cand.Lng = snap.DeviceLocation.Lat, snap.DeviceLocation.Lng
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

// dispatchAnalytics records the chunk event, and the resulting snapshot if
// the sink supports it, on a detached, timeout-bound context so a slow or
// down sink never adds latency to the caller's response.
func (co *Coordinator) dispatchAnalytics(chunk Chunk, incidentID string, score *float64, isNew *bool, now time.Time, snap incident.Snapshot) {
	if co.Analytics == nil {
		return
	}
	preview := chunk.Text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	ev := ChunkEvent{
		IncidentID:   incidentID,
		ChunkPreview: preview,
		ClusterScore: score,
		ClusterNew:   isNew,
		DeviceLat:    chunk.DeviceLat,
		DeviceLng:    chunk.DeviceLng,
		CallerID:     chunk.CallerID,
		IngestedAt:   now,
	}
	recorder, recordsSnapshots := co.Analytics.(snapshotRecorder)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyticsTimeout)
		defer cancel()
		if err := co.Analytics.RecordChunk(ctx, ev); err != nil {
			metrics.AnalyticsDispatchFailuresTotal.WithLabelValues("record_chunk").Inc()
			co.Logger.Warn("analytics dispatch failed", "error", err, "incident_id", incidentID)
		}
		if recordsSnapshots {
			if err := recorder.RecordSnapshot(ctx, snap); err != nil {
				metrics.AnalyticsDispatchFailuresTotal.WithLabelValues("record_snapshot").Inc()
				co.Logger.Warn("analytics snapshot dispatch failed", "error", err, "incident_id", incidentID)
			}
		}
	}()
}
