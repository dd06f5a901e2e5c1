package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/tcp/defs"
)

// LiveWorkers lists the IDs of workers whose sessions are still open
type LiveWorkers interface {
	WorkerIDs() []string
}

// SchedulerEngine runs the coordinator's periodic housekeeping
type SchedulerEngine struct {
	RefreshInterval time.Duration
	workerService   worker.IWorkerRegistrationService
	live            LiveWorkers
	logger          primary.Logger
	wg              sync.WaitGroup
}

func NewSchedulerEngine(
	refreshInterval time.Duration,
	workerService worker.IWorkerRegistrationService,
	live LiveWorkers,
	logger primary.Logger,
) *SchedulerEngine {
	if refreshInterval <= 0 {
		refreshInterval = defs.RegistryRefreshInterval
	}
	return &SchedulerEngine{
		RefreshInterval: refreshInterval,
		workerService:   workerService,
		live:            live,
		logger:          logger,
	}
}

// StartRegistryRefresh keeps idle workers from expiring out of the registry
// until ctx is done
func (s *SchedulerEngine) StartRegistryRefresh(ctx context.Context) {
	ticker := time.NewTicker(s.RefreshInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RefreshWorkers(ctx)
			}
		}
	}()
}

// RefreshWorkers re-saves every live worker once
func (s *SchedulerEngine) RefreshWorkers(ctx context.Context) {
	ids := s.live.WorkerIDs()
	for _, id := range ids {
		if err := s.workerService.RefreshWorker(ctx, id); err != nil {
			s.logger.Warn("Failed to refresh worker", "workerId", id, "error", err)
		}
	}
	s.logger.Debug("Refreshed worker registry", "count", len(ids))
}

// Wait blocks until the background loops have exited
func (s *SchedulerEngine) Wait() {
	s.wg.Wait()
}
