package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/domain"
)

var _ IWorkerRegistrationService = &WorkerRegistrationService{}

// WorkerRegistrationService implements the WorkerRegistrationService interface
type WorkerRegistrationService struct {
	workerRepo secondary.WorkerRepository
	logger     primary.Logger

	// serializes read-modify-write updates against removal
	mu sync.Mutex
}

// NewWorkerRegistrationService creates a new worker registration service
func NewWorkerRegistrationService(workerRepo secondary.WorkerRepository, logger primary.Logger) *WorkerRegistrationService {
	return &WorkerRegistrationService{
		workerRepo: workerRepo,
		logger:     logger,
	}
}

// RegisterWorker records a worker that completed its Hello handshake
func (s *WorkerRegistrationService) RegisterWorker(ctx context.Context, name string, remoteAddr string) (*domain.WorkerInfo, error) {
	workerInfo := &domain.WorkerInfo{
		ID:          uuid.NewString(),
		Name:        name,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}

	if err := s.workerRepo.SaveWorker(ctx, workerInfo); err != nil {
		s.logger.Error("Failed to save worker", "error", err)
		return nil, fmt.Errorf("failed to register worker: %w", err)
	}

	s.logger.Info("Registered worker", "workerId", workerInfo.ID, "name", name, "addr", remoteAddr)
	return workerInfo, nil
}

// TaskStarted marks a task as in flight on the worker
func (s *WorkerRegistrationService) TaskStarted(ctx context.Context, workerID string, task domain.Task) error {
	return s.update(ctx, workerID, func(w *domain.WorkerInfo) {
		w.CurrentTask = string(task)
	})
}

// TaskFinished clears the in-flight task and bumps the completed count
func (s *WorkerRegistrationService) TaskFinished(ctx context.Context, workerID string) error {
	return s.update(ctx, workerID, func(w *domain.WorkerInfo) {
		w.CurrentTask = ""
		w.TasksDone++
	})
}

// RefreshWorker re-saves a live worker so registries with expiry keep it
func (s *WorkerRegistrationService) RefreshWorker(ctx context.Context, workerID string) error {
	return s.update(ctx, workerID, func(*domain.WorkerInfo) {})
}

// UnregisterWorker forgets a worker whose session ended
func (s *WorkerRegistrationService) UnregisterWorker(ctx context.Context, workerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.workerRepo.RemoveWorker(ctx, workerID); err != nil {
		return fmt.Errorf("failed to unregister worker: %w", err)
	}
	s.logger.Info("Worker disconnected", "workerId", workerID)
	return nil
}

// GetAllWorkers gets all registered workers
func (s *WorkerRegistrationService) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	s.logger.Debug("Getting all workers")

	workers, err := s.workerRepo.GetAllWorkers(ctx)
	if err != nil {
		s.logger.Error("Failed to get all workers", "error", err)
		return nil, fmt.Errorf("failed to get all workers: %w", err)
	}

	return workers, nil
}

func (s *WorkerRegistrationService) update(ctx context.Context, workerID string, fn func(w *domain.WorkerInfo)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker, err := s.workerRepo.GetWorker(ctx, workerID)
	if err != nil {
		return fmt.Errorf("failed to get worker: %w", err)
	}
	if worker == nil {
		return fmt.Errorf("worker not found: %s", workerID)
	}

	fn(worker)

	if err := s.workerRepo.SaveWorker(ctx, worker); err != nil {
		s.logger.Error("Failed to update worker", "workerId", workerID, "error", err)
		return fmt.Errorf("failed to update worker: %w", err)
	}
	return nil
}
