package store

import (
	"context"
	"fmt"
)

// schemaStatements create the report tables. They are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS detection_reports (
        report_id                 UUID PRIMARY KEY,
        session_id                UUID NOT NULL,
        scan_number               BIGINT NOT NULL,
        observed_at               TIMESTAMPTZ NOT NULL,
        overall_risk_score        DOUBLE PRECISION NOT NULL,
        exceeds_threshold         BOOLEAN NOT NULL,
        audio_monitoring_detected BOOLEAN NOT NULL,
        hidden_overlays           JSONB NOT NULL DEFAULT '[]',
        hardware_suspicion        JSONB,
        vm_detection              JSONB,
        module_failures           TEXT[] NOT NULL DEFAULT '{}',
        UNIQUE (session_id, scan_number)
    );`,
	`CREATE TABLE IF NOT EXISTS suspicious_processes (
        report_id              UUID NOT NULL REFERENCES detection_reports (report_id) ON DELETE CASCADE,
        pid                    BIGINT NOT NULL,
        name                   TEXT NOT NULL,
        path                   TEXT NOT NULL,
        risk_score             DOUBLE PRECISION NOT NULL,
        reasons                TEXT[] NOT NULL,
        started_during_session BOOLEAN NOT NULL,
        is_whitelisted         BOOLEAN NOT NULL,
        PRIMARY KEY (report_id, pid)
    );`,
}

// Migrate creates the report tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	s.log.Debug("Report schema is up to date.")
	return nil
}
