// package reportrepository archives build reports in PostgreSQL
package reportrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS build_runs (
	run_id      UUID PRIMARY KEY,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS build_outcomes (
	run_id       UUID NOT NULL REFERENCES build_runs(run_id) ON DELETE CASCADE,
	path         TEXT NOT NULL,
	success      BOOLEAN NOT NULL,
	log          TEXT NOT NULL,
	worker_id    TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);
`

var _ secondary.ReportRepository = (*ReportRepository)(nil)

// ReportRepository implements the ReportRepository interface with PostgreSQL
type ReportRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB, logger primary.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the report tables if they do not exist
func (r *ReportRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate report tables: %w", err)
	}
	return nil
}

// outcomeRow is the build_outcomes row shape
type outcomeRow struct {
	RunID uuid.UUID `db:"run_id"`
	domain.TaskOutcome
}

// SaveReport stores the run and its outcomes in one transaction
func (r *ReportRepository) SaveReport(ctx context.Context, report *domain.BuildReport) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if the transaction is committed

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO build_runs (run_id, total, succeeded, started_at, finished_at)
		VALUES (:run_id, :total, :succeeded, :started_at, :finished_at)
	`, report)
	if err != nil {
		r.logger.Error("Failed to save build run", "runId", report.RunID, "error", err)
		return fmt.Errorf("failed to save build run: %w", err)
	}

	if len(report.Outcomes) > 0 {
		rows := make([]outcomeRow, len(report.Outcomes))
		for i, o := range report.Outcomes {
			rows[i] = outcomeRow{RunID: report.RunID, TaskOutcome: o}
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO build_outcomes (run_id, path, success, log, worker_id, completed_at)
			VALUES (:run_id, :path, :success, :log, :worker_id, :completed_at)
		`, rows)
		if err != nil {
			r.logger.Error("Failed to save build outcomes", "runId", report.RunID, "error", err)
			return fmt.Errorf("failed to save build outcomes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetReport retrieves a run and its outcomes by ID
func (r *ReportRepository) GetReport(ctx context.Context, runID uuid.UUID) (*domain.BuildReport, error) {
	var report domain.BuildReport
	err := r.db.GetContext(ctx, &report, `
		SELECT run_id, total, succeeded, started_at, finished_at
		FROM build_runs
		WHERE run_id = $1
	`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get build run", "runId", runID, "error", err)
		return nil, fmt.Errorf("failed to get build run: %w", err)
	}

	err = r.db.SelectContext(ctx, &report.Outcomes, `
		SELECT path, success, log, worker_id, completed_at
		FROM build_outcomes
		WHERE run_id = $1
		ORDER BY completed_at ASC
	`, runID)
	if err != nil {
		r.logger.Error("Failed to get build outcomes", "runId", runID, "error", err)
		return nil, fmt.Errorf("failed to get build outcomes: %w", err)
	}

	return &report, nil
}
