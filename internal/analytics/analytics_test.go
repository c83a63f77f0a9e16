package analytics

import (
	"context"
	"testing"

	"github.com/sentrysystems/incident-engine/internal/incident"
	"github.com/sentrysystems/incident-engine/internal/ingest"
)

func TestNoopSinkNeverErrors(t *testing.T) {
	var s Sink = NoopSink{}
	ctx := context.Background()

	if err := s.RecordChunk(ctx, ingest.ChunkEvent{IncidentID: "inc-1"}); err != nil {
		t.Errorf("RecordChunk: %v", err)
	}
	if err := s.RecordSnapshot(ctx, incident.Snapshot{IncidentID: "inc-1"}); err != nil {
		t.Errorf("RecordSnapshot: %v", err)
	}
	if err := s.RecordTimelineEvents(ctx, "inc-1", nil); err != nil {
		t.Errorf("RecordTimelineEvents: %v", err)
	}
}
