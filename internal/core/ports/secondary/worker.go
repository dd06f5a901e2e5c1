package secondary

import (
	"context"

	"gitlab.com/distbuild.net/internal/domain"
)

type WorkerRepository interface {
	// SaveWorker saves worker information
	SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error

	// GetWorker retrieves worker information by ID, nil if unknown
	GetWorker(ctx context.Context, workerID string) (*domain.WorkerInfo, error)

	// RemoveWorker forgets a worker whose session ended
	RemoveWorker(ctx context.Context, workerID string) error

	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)
}

// WorkerProcess is a spawned worker
type WorkerProcess interface {
	// Wait blocks until the process exits
	Wait() error
	Kill() error
}

type WorkerSpawner interface {
	// Spawn starts worker #ordinal, which must connect back to address
	Spawn(ctx context.Context, ordinal int, address string) (WorkerProcess, error)
}
