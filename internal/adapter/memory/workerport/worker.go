package workerport

import (
	"context"
	"sort"
	"sync"

	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/domain"
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

// WorkerRepository keeps worker information in process memory
type WorkerRepository struct {
	mu      sync.RWMutex
	workers map[string]domain.WorkerInfo
}

func NewWorkerRepository() *WorkerRepository {
	return &WorkerRepository{workers: make(map[string]domain.WorkerInfo)}
}

func (r *WorkerRepository) SaveWorker(_ context.Context, worker *domain.WorkerInfo) error {
	r.mu.Lock()
	r.workers[worker.ID] = *worker
	r.mu.Unlock()
	return nil
}

func (r *WorkerRepository) GetWorker(_ context.Context, workerID string) (*domain.WorkerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[workerID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WorkerRepository) RemoveWorker(_ context.Context, workerID string) error {
	r.mu.Lock()
	delete(r.workers, workerID)
	r.mu.Unlock()
	return nil
}

// GetAllWorkers returns workers ordered by connection time
func (r *WorkerRepository) GetAllWorkers(_ context.Context) ([]*domain.WorkerInfo, error) {
	r.mu.RLock()
	workers := make([]*domain.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		w := w
		workers = append(workers, &w)
	}
	r.mu.RUnlock()

	sort.Slice(workers, func(i, j int) bool {
		return workers[i].ConnectedAt.Before(workers[j].ConnectedAt)
	})
	return workers, nil
}
