package worker

import (
	"context"

	"gitlab.com/distbuild.net/internal/domain"
)

// IWorkerRegistrationService tracks the workers connected to a coordinator
type IWorkerRegistrationService interface {
	// RegisterWorker records a worker that completed its Hello handshake
	RegisterWorker(ctx context.Context, name string, remoteAddr string) (*domain.WorkerInfo, error)

	// TaskStarted marks a task as in flight on the worker
	TaskStarted(ctx context.Context, workerID string, task domain.Task) error

	// TaskFinished clears the in-flight task and bumps the completed count
	TaskFinished(ctx context.Context, workerID string) error

	// RefreshWorker re-saves a live worker so registries with expiry keep it
	RefreshWorker(ctx context.Context, workerID string) error

	// UnregisterWorker forgets a worker whose session ended
	UnregisterWorker(ctx context.Context, workerID string) error

	// GetAllWorkers gets all registered workers
	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)
}
