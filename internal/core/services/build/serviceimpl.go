package build

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/google/uuid"

	"gitlab.com/distbuild.net/internal/config"
	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/schedulerengine"
	"gitlab.com/distbuild.net/internal/tcp"
	"gitlab.com/distbuild.net/internal/tcp/connectionmanager"
	"gitlab.com/distbuild.net/internal/tcp/handlers"
)

// ErrNoFiles is returned by Build when there is nothing to compile
var ErrNoFiles = errors.New("no files to build")

const stopTimeout = 5 * time.Second

var _ IBuildService = &BuildService{}

// BuildService implements the IBuildService interface
type BuildService struct {
	clusterCfg    *config.ClusterConfig
	spawner       secondary.WorkerSpawner
	workerService worker.IWorkerRegistrationService
	reportRepo    secondary.ReportRepository
	stager        secondary.Stager
	logger        primary.Logger

	// NumCPU reports available parallelism for the worker-count clamp
	NumCPU func() int
	// OnListen, when set, is called with the bound address before workers are spawned
	OnListen func(addr string)
}

// NewBuildService creates a new build service
func NewBuildService(
	clusterCfg *config.ClusterConfig,
	spawner secondary.WorkerSpawner,
	workerService worker.IWorkerRegistrationService,
	reportRepo secondary.ReportRepository,
	stager secondary.Stager,
	logger primary.Logger,
) *BuildService {
	return &BuildService{
		clusterCfg:    clusterCfg,
		spawner:       spawner,
		workerService: workerService,
		reportRepo:    reportRepo,
		stager:        stager,
		logger:        logger,
		NumCPU:        runtime.NumCPU,
	}
}

// WorkerService exposes the registry of connected workers
func (s *BuildService) WorkerService() worker.IWorkerRegistrationService {
	return s.workerService
}

// ReportRepository exposes the build history store
func (s *BuildService) ReportRepository() secondary.ReportRepository {
	return s.reportRepo
}

// Build implements IBuildService. The workload is closed up front so every
// worker session ends with a Shutdown once the queue drains.
func (s *BuildService) Build(ctx context.Context, files []string) (*domain.BuildReport, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	report := &domain.BuildReport{
		RunID:     uuid.New(),
		Total:     len(files),
		StartedAt: time.Now(),
	}
	workerCount := s.workerCount()

	tasks := make([]domain.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, domain.Task(f))
	}
	taskQueue := queue.NewTaskQueue(tasks...)
	taskQueue.Close()
	resultTable := results.NewTable()

	s.logger.Info("Starting build", "runId", report.RunID, "files", len(files), "workers", workerCount)

	server, procs, err := s.startCluster(ctx, workerCount, taskQueue, resultTable)
	if err != nil {
		return nil, err
	}

	server.Wait()
	s.waitProcesses(procs)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = server.Stop(stopCtx)

	report.FinishedAt = time.Now()
	report.Outcomes = resultTable.All()
	report.Succeeded = resultTable.Succeeded()

	if s.reportRepo != nil {
		if err := s.reportRepo.SaveReport(ctx, report); err != nil {
			s.logger.Error("Failed to save build report", "runId", report.RunID, "error", err)
		}
	}

	s.logger.Info(report.CountLine(), "runId", report.RunID)
	s.logger.Info(report.VerdictLine(), "runId", report.RunID)
	return report, nil
}

// Serve implements IBuildService. It returns nil once ctx is done and the
// server has been stopped.
func (s *BuildService) Serve(ctx context.Context, taskQueue *queue.TaskQueue, resultTable *results.Table) error {
	workerCount := s.workerCount()

	server, procs, err := s.startCluster(ctx, workerCount, taskQueue, resultTable)
	if err != nil {
		return err
	}

	engine := schedulerengine.NewSchedulerEngine(
		s.clusterCfg.RegistryRefreshInterval, s.workerService, server.ConnectionManager(), s.logger)
	engine.StartRegistryRefresh(ctx)
	defer engine.Wait()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info("Stopping build server")

		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := server.Stop(stopCtx); err != nil {
			s.logger.Warn("Sessions still running at shutdown", "error", err)
		}
	}()

	clientHandler := handlers.NewClientSubmissionHandler(taskQueue, resultTable, s.stager, s.clusterCfg.ResultTimeout, s.logger)
	s.logger.Info("Accepting client submissions", "address", server.Addr().String())
	if err := server.Serve(ctx, clientHandler); err != nil {
		return err
	}

	<-stopped
	s.waitProcesses(procs)
	return nil
}

// startCluster binds the listener, spawns workerCount workers and accepts
// exactly that many worker connections. Any failure here is fatal.
func (s *BuildService) startCluster(
	ctx context.Context,
	workerCount int,
	taskQueue *queue.TaskQueue,
	resultTable *results.Table,
) (*tcp.TCPServer, []secondary.WorkerProcess, error) {
	connectionMgr := connectionmanager.NewConnectionManager(s.logger)
	server := tcp.NewTCPServer(s.logger,
		tcp.WithAddress(s.clusterCfg.Address),
		tcp.WithConnectionManager(connectionMgr),
	)
	if err := server.Listen(); err != nil {
		return nil, nil, err
	}
	addr := server.Addr().String()
	if s.OnListen != nil {
		s.OnListen(addr)
	}

	abort := func(procs []secondary.WorkerProcess, err error) (*tcp.TCPServer, []secondary.WorkerProcess, error) {
		for _, p := range procs {
			_ = p.Kill()
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = server.Stop(stopCtx)
		return nil, nil, err
	}

	procs := make([]secondary.WorkerProcess, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		p, err := s.spawner.Spawn(ctx, i, addr)
		if err != nil {
			return abort(procs, err)
		}
		procs = append(procs, p)
	}

	sessionHandler := handlers.NewWorkerSessionHandler(taskQueue, resultTable, s.workerService, connectionMgr, s.logger)
	if err := server.AcceptWorkers(ctx, workerCount, sessionHandler); err != nil {
		return abort(procs, err)
	}
	s.logger.Info("All workers connected", "workers", workerCount)

	return server, procs, nil
}

func (s *BuildService) workerCount() int {
	cpus := s.NumCPU()
	count, clamped := ClampWorkerCount(s.clusterCfg.WorkerCount, cpus)
	if clamped {
		s.logger.Warn("Requested worker count exceeds CPU bound, lowering",
			"requested", s.clusterCfg.WorkerCount, "cpus", cpus, "workers", count)
	}
	return count
}

func (s *BuildService) waitProcesses(procs []secondary.WorkerProcess) {
	for i, p := range procs {
		if err := p.Wait(); err != nil {
			s.logger.Warn("Worker process exited with error", "ordinal", i, "error", err)
		}
	}
}
