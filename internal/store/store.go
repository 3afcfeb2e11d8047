package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const sqlInsertReport = `
        INSERT INTO detection_reports (
            report_id, session_id, scan_number, observed_at,
            overall_risk_score, exceeds_threshold, audio_monitoring_detected,
            hidden_overlays, hardware_suspicion, vm_detection, module_failures
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
    `

const sqlReportsBySession = `
        SELECT report_id, scan_number, observed_at, overall_risk_score, exceeds_threshold, module_failures
        FROM detection_reports
        WHERE session_id = $1
        ORDER BY scan_number ASC;
    `

var processColumns = []string{
	"report_id", "pid", "name", "path", "risk_score", "reasons", "started_during_session", "is_whitelisted",
}

// ReportSummary is the persisted headline of one detection report.
type ReportSummary struct {
	ReportID         string    `json:"report_id"`
	ScanNumber       uint64    `json:"scan_number"`
	ObservedAt       time.Time `json:"observed_at"`
	OverallRiskScore float64   `json:"overall_risk_score"`
	ExceedsThreshold bool      `json:"exceeds_threshold"`
	ModuleFailures   []string  `json:"module_failures"`
}

// Store persists detection reports to PostgreSQL. It implements schemas.ReportSink.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.ReportSink = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if pool == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize store with nil dependencies")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Emit writes the report header and its flagged processes in one transaction.
func (s *Store) Emit(ctx context.Context, report *schemas.DetectionReport) error {
	if report == nil {
		return fmt.Errorf("cannot persist a nil report")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed, which is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistReport(ctx, tx, report); err != nil {
		return err
	}

	if len(report.SuspiciousProcesses) > 0 {
		if err := s.persistProcesses(ctx, tx, report.ReportID, report.SuspiciousProcesses); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistReport(ctx context.Context, tx pgx.Tx, r *schemas.DetectionReport) error {
	overlays, err := jsonColumn(r.HiddenOverlays, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode hidden overlays: %w", err)
	}
	hardware, err := jsonColumn(r.HardwareSuspicion, "null")
	if err != nil {
		return fmt.Errorf("failed to encode hardware suspicion: %w", err)
	}
	vm, err := jsonColumn(r.VMDetection, "null")
	if err != nil {
		return fmt.Errorf("failed to encode vm detection: %w", err)
	}
	failures := r.ModuleFailures
	if failures == nil {
		failures = []string{}
	}

	_, err = tx.Exec(ctx, sqlInsertReport,
		r.ReportID, r.SessionID, int64(r.ScanNumber), r.Timestamp.UTC(),
		r.OverallRiskScore, r.ExceedsThreshold, r.AudioMonitoringDetected,
		overlays, hardware, vm, failures,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection report %s: %w", r.ReportID, err)
	}
	return nil
}

func (s *Store) persistProcesses(ctx context.Context, tx pgx.Tx, reportID string, processes []schemas.ProcessSuspicion) error {
	rows := make([][]interface{}, len(processes))
	for i, p := range processes {
		reasons := p.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		rows[i] = []interface{}{
			reportID, int64(p.PID), p.Name, p.Path, p.RiskScore, reasons, p.StartedDuringSession, p.IsWhitelisted,
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"suspicious_processes"}, processColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy suspicious processes: %w", err)
	}
	if int(copyCount) != len(processes) {
		return fmt.Errorf("mismatch in copied process count: expected %d, got %d", len(processes), copyCount)
	}
	return nil
}

// ReportsBySession returns the stored report summaries of one session in scan order.
func (s *Store) ReportsBySession(ctx context.Context, sessionID string) ([]ReportSummary, error) {
	rows, err := s.pool.Query(ctx, sqlReportsBySession, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var sum ReportSummary
		var scanNumber int64
		if err := rows.Scan(
			&sum.ReportID, &scanNumber, &sum.ObservedAt,
			&sum.OverallRiskScore, &sum.ExceedsThreshold, &sum.ModuleFailures,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection report row: %w", err)
		}
		sum.ScanNumber = uint64(scanNumber)
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return summaries, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error { return nil }

// jsonColumn encodes v for a jsonb column. A nil pointer or slice becomes fallback.
func jsonColumn(v interface{}, fallback string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(fallback), nil
	}
	return data, nil
}
