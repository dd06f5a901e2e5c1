package reportrepository

import (
	"context"

	"github.com/google/uuid"

	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/domain"
)

var _ secondary.ReportRepository = NoopRepository{}

// NoopRepository is used when no database is configured
type NoopRepository struct{}

func (NoopRepository) SaveReport(context.Context, *domain.BuildReport) error { return nil }

func (NoopRepository) GetReport(context.Context, uuid.UUID) (*domain.BuildReport, error) {
	return nil, nil
}
