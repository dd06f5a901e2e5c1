package secondary

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/distbuild.net/internal/domain"
)

// ReportRepository archives controller-mode build reports
type ReportRepository interface {
	SaveReport(ctx context.Context, report *domain.BuildReport) error

	// GetReport retrieves a report by run ID, nil if unknown
	GetReport(ctx context.Context, runID uuid.UUID) (*domain.BuildReport, error)
}
