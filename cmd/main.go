package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gitlab.com/distbuild.net/internal/adapter/compiler"
	"gitlab.com/distbuild.net/internal/adapter/logging"
	memoryworkerport "gitlab.com/distbuild.net/internal/adapter/memory/workerport"
	"gitlab.com/distbuild.net/internal/adapter/postgres/reportrepository"
	"gitlab.com/distbuild.net/internal/adapter/process"
	"gitlab.com/distbuild.net/internal/adapter/redis/workerport"
	"gitlab.com/distbuild.net/internal/adapter/staging"
	"gitlab.com/distbuild.net/internal/cli"
	"gitlab.com/distbuild.net/internal/config"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/core/services/build"
	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/core/services/submit"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	logger2 "gitlab.com/distbuild.net/internal/global/logger"
	http2 "gitlab.com/distbuild.net/internal/http"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		logger2.Error("Error loading .env file", "error", err)
		os.Exit(1)
	}

	sysCfg := config.NewSystemConfig()
	inv, err := cli.Parse(os.Args[1:], sysCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewZapLoggerWithMode(sysCfg.DebugMode)

	var code int
	switch inv.Command {
	case cli.CommandBuild:
		code = runBuild(sysCfg, inv.Files, logger)
	case cli.CommandServe:
		code = runServe(sysCfg, logger)
	case cli.CommandSubmit:
		code = runSubmit(sysCfg, inv.Files, logger)
	case cli.CommandWorker:
		code = runWorker(sysCfg, inv.WorkerID, logger)
	}

	logger.Sync()
	os.Exit(code)
}

func runBuild(sysCfg *config.AppConfig, files []string, logger *logging.ZapLogger) int {
	if len(files) == 0 {
		logger.Error("No files to build")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildSvc, cleanup, err := newBuildService(ctx, sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up build", "error", err)
		return 1
	}
	defer cleanup()

	report, err := buildSvc.Build(ctx, files)
	if err != nil {
		logger.Error("Build failed", "error", err)
		return 1
	}

	for _, outcome := range report.Outcomes {
		if !outcome.Success {
			fmt.Fprintf(os.Stderr, "%s: %s\n", outcome.Path, outcome.Log)
		}
	}
	// compile failures are reported, not treated as a pipeline error
	fmt.Println(report.CountLine())
	fmt.Println(report.VerdictLine())
	return 0
}

func runServe(sysCfg *config.AppConfig, logger *logging.ZapLogger) int {
	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildSvc, cleanup, err := newBuildService(ctx, sysCfg, logger)
	if err != nil {
		logger.Error("Failed to set up build server", "error", err)
		return 1
	}
	defer cleanup()

	taskQueue := queue.NewTaskQueue()
	resultTable := results.NewTable()

	if sysCfg.Admin.Port > 0 {
		provider := http2.NewServiceProvider(buildSvc.WorkerService(), taskQueue, resultTable, buildSvc.ReportRepository())
		httpServer := http2.NewServer(sysCfg.Admin.Port, "distbuild", *provider, logger)
		if err := httpServer.Init(); err != nil {
			logger.Error("Failed to init admin server", "error", err)
			return 1
		}
		if err := httpServer.Start(ctx); err != nil {
			logger.Error("Failed to start admin server", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Stop(shutdownCtx)
		}()
	}

	if err := buildSvc.Serve(ctx, taskQueue, resultTable); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Build server failed", "error", err)
		return 1
	}

	logger.Info("successfully shutdown server")
	return 0
}

func runSubmit(sysCfg *config.AppConfig, files []string, logger *logging.ZapLogger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	submitSvc := submit.NewSubmitService(sysCfg.Cluster.Address, logger)
	summary, err := submitSvc.SubmitFiles(ctx, files)

	for _, f := range summary.Failed() {
		fmt.Fprintf(os.Stderr, "Error submitting %s: %v\n", f.Path, f.Err)
	}
	fmt.Println(summary.String())

	if err != nil {
		return 1
	}
	return 0
}

func runWorker(sysCfg *config.AppConfig, id string, logger *logging.ZapLogger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerLogger := logger.With("worker", id)
	w := worker.NewWorker(id, sysCfg.Cluster.Address, compiler.NewGCC(sysCfg.Compiler.Command, workerLogger), workerLogger)
	w.RetryDelay = sysCfg.Cluster.ConnectRetryDelay

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		workerLogger.Error("Worker stopped", "error", err)
		return 1
	}
	return 0
}

// newBuildService wires the coordinator: worker registry, build history,
// staging and process spawner.
func newBuildService(ctx context.Context, sysCfg *config.AppConfig, logger *logging.ZapLogger) (*build.BuildService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// SECONDARY PORTS
	var workerRepo secondary.WorkerRepository = memoryworkerport.NewWorkerRepository()
	if sysCfg.RedisConfig.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     sysCfg.RedisConfig.Url,
			Password: sysCfg.RedisConfig.Password,
			DB:       sysCfg.RedisConfig.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, func() {}, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		workerRepo = workerport.NewWorkerRepository(redisClient, logger)
	}

	var reportRepo secondary.ReportRepository = reportrepository.NoopRepository{}
	if sysCfg.PostgresConfig.Enabled() {
		db, err := setupDatabase(sysCfg.PostgresConfig.Url)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { _ = db.Close() })

		repo := reportrepository.NewReportRepository(db, logger)
		if err := repo.Migrate(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		reportRepo = repo
	}

	spawner, err := process.NewSelfSpawner(logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	//services
	workerService := worker.NewWorkerRegistrationService(workerRepo, logger)
	stager := staging.NewDirStager(sysCfg.Staging.Dir, logger)

	buildSvc := build.NewBuildService(sysCfg.Cluster, spawner, workerService, reportRepo, stager, logger)
	return buildSvc, cleanup, nil
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}
