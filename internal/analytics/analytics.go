// Package analytics persists append-only records of ingested chunks and
// incident state to an external warehouse. It is always optional: absent
// credentials disable the sink and the engine runs without it.
package analytics

import (
	"context"

	"github.com/sentrysystems/incident-engine/internal/incident"
	"github.com/sentrysystems/incident-engine/internal/ingest"
)

// Sink is the full analytics capability: chunk events plus the two
// append-only tables a sink may additionally maintain from a snapshot.
// ingest.Coordinator only requires RecordChunk (see ingest.AnalyticsSink);
// the wider interface is for callers that persist full incident state too.
type Sink interface {
	ingest.AnalyticsSink
	RecordSnapshot(ctx context.Context, snap incident.Snapshot) error
	RecordTimelineEvents(ctx context.Context, incidentID string, events []incident.TimelineEvent) error
}

// NoopSink discards every record. It is the default when no analytics
// credentials are configured, keeping the engine fully functional offline.
type NoopSink struct{}

func (NoopSink) RecordChunk(context.Context, ingest.ChunkEvent) error                { return nil }
func (NoopSink) RecordSnapshot(context.Context, incident.Snapshot) error              { return nil }
func (NoopSink) RecordTimelineEvents(context.Context, string, []incident.TimelineEvent) error {
	return nil
}
