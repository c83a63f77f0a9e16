package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sentrysystems/incident-engine/internal/incident"
	"github.com/sentrysystems/incident-engine/internal/ingest"
	"github.com/sentrysystems/incident-engine/migrations"
)

// PostgresSink writes the three append-only tables from the persisted-state
// layout: incident_snapshots, timeline_events, chunk_events. It owns its own
// connection pool, independent of any other component's resources.
type PostgresSink struct {
	db *sqlx.DB
}

// NewPostgresSink connects to Postgres with the warehouse credentials. Callers
// should only construct this when analytics credentials are configured; their
// absence means NoopSink is used instead and no connection is attempted.
func NewPostgresSink(connectionString string) (*PostgresSink, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("analytics: connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &PostgresSink{db: db}, nil
}

// Close releases the sink's connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// RunMigrations executes every embedded *.sql file in name order. Safe to
// call repeatedly; every statement is idempotent (CREATE TABLE/INDEX IF NOT EXISTS).
func (s *PostgresSink) RunMigrations(ctx context.Context) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("analytics: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		sqlBytes, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("analytics: read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("analytics: apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresSink) RecordChunk(ctx context.Context, ev ingest.ChunkEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunk_events (incident_id, chunk_preview, cluster_score, cluster_new, device_lat, device_lng, caller_id, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.IncidentID, ev.ChunkPreview, ev.ClusterScore, ev.ClusterNew, ev.DeviceLat, ev.DeviceLng, ev.CallerID, ev.IngestedAt)
	return err
}

func (s *PostgresSink) RecordSnapshot(ctx context.Context, snap incident.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("analytics: marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incident_snapshots (incident_id, last_updated, snapshot_json)
		VALUES ($1, $2, $3)
	`, snap.IncidentID, snap.LastUpdated, raw)
	return err
}

func (s *PostgresSink) RecordTimelineEvents(ctx context.Context, incidentID string, events []incident.TimelineEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("analytics: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		raw, err := json.Marshal(ev.Value)
		if err != nil {
			return fmt.Errorf("analytics: marshal timeline value: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO timeline_events (incident_id, event_time, claim_type, value, confidence, source_text, caller_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, incidentID, ev.Time, string(ev.ClaimType), raw, ev.Confidence, ev.SourceText, ev.CallerID)
		if err != nil {
			return fmt.Errorf("analytics: insert timeline event: %w", err)
		}
	}
	return tx.Commit()
}
