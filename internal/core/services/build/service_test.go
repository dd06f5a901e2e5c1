package build

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/distbuild.net/internal/adapter/logging"
	"gitlab.com/distbuild.net/internal/adapter/memory/workerport"
	"gitlab.com/distbuild.net/internal/adapter/staging"
	"gitlab.com/distbuild.net/internal/config"
	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

type fixture struct {
	svc       *BuildService
	workerSvc *worker.WorkerRegistrationService
	reports   *memoryReports
	addr      chan string
}

func newFixture(t *testing.T, workers int, spawner secondary.WorkerSpawner, logger primary.Logger) *fixture {
	t.Helper()
	cfg := &config.ClusterConfig{
		Address:           "127.0.0.1:0",
		WorkerCount:       workers,
		ResultTimeout:     2 * time.Second,
		ConnectRetryDelay: 10 * time.Millisecond,
	}
	f := &fixture{
		workerSvc: worker.NewWorkerRegistrationService(workerport.NewWorkerRepository(), logger),
		reports:   &memoryReports{},
		addr:      make(chan string, 1),
	}
	f.svc = NewBuildService(cfg, spawner, f.workerSvc, f.reports, staging.NewDirStager(t.TempDir(), logger), logger)
	f.svc.NumCPU = func() int { return 8 }
	f.svc.OnListen = func(addr string) { f.addr <- addr }
	return f
}

func TestBuildAllSucceed(t *testing.T) {
	logger := &recordingLogger{}
	spawner := &goroutineSpawner{compiler: &fakeCompiler{}, logger: logger}
	f := newFixture(t, 2, spawner, logger)

	report, err := f.svc.Build(context.Background(), []string{"a.c", "b.c"})
	require.NoError(t, err)

	require.Equal(t, 2, report.Total)
	require.Equal(t, 2, report.Succeeded)
	require.True(t, report.Passed())
	require.Len(t, report.Outcomes, 2)
	require.Contains(t, logger.infoLines(), "Build Complete: 2/2 Succeeded.")
	require.Contains(t, logger.infoLines(), "All files compiled successfully to .o files.")
	require.Len(t, f.reports.reports, 1)
	require.Equal(t, report.RunID, f.reports.reports[0].RunID)
	require.Equal(t, 2, spawner.count())

	workers, err := f.workerSvc.GetAllWorkers(context.Background())
	require.NoError(t, err)
	require.Empty(t, workers)
}

func TestBuildReportsCompileFailure(t *testing.T) {
	logger := &recordingLogger{}
	compiler := &fakeCompiler{fail: map[string]string{"bad.c": "syntax error"}}
	f := newFixture(t, 1, &goroutineSpawner{compiler: compiler, logger: logger}, logger)

	report, err := f.svc.Build(context.Background(), []string{"bad.c"})
	require.NoError(t, err)

	require.Equal(t, 1, report.Total)
	require.Zero(t, report.Succeeded)
	require.False(t, report.Passed())
	require.Contains(t, logger.infoLines(), "Build Complete: 0/1 Succeeded.")
	require.Contains(t, logger.infoLines(), "Some files failed. Check stdout for details.")

	outcome, ok := report.Find("bad.c")
	require.True(t, ok)
	require.False(t, outcome.Success)
	require.Equal(t, "syntax error", outcome.Log)
}

func TestBuildTerminatesWithUnevenWorkload(t *testing.T) {
	logger := logging.NewNopLogger()
	f := newFixture(t, 2, &goroutineSpawner{compiler: &fakeCompiler{}, logger: logger}, logger)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Build(context.Background(), []string{"a.c", "b.c", "c.c"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("build did not finish after the queue drained")
	}
}

func TestBuildRejectsEmptyWorkload(t *testing.T) {
	logger := logging.NewNopLogger()
	spawner := &goroutineSpawner{compiler: &fakeCompiler{}, logger: logger}
	f := newFixture(t, 2, spawner, logger)

	_, err := f.svc.Build(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoFiles)
	require.Zero(t, spawner.count())
	require.Empty(t, f.addr, "nothing should have been bound")
}

func TestBuildFailsWhenSpawnFails(t *testing.T) {
	f := newFixture(t, 1, failingSpawner{}, logging.NewNopLogger())

	_, err := f.svc.Build(context.Background(), []string{"a.c"})
	require.ErrorIs(t, err, errSpawn)
	require.Empty(t, f.reports.reports)
}

func TestWorkerCountIsClamped(t *testing.T) {
	count, clamped := ClampWorkerCount(100, 8)
	require.Equal(t, 16, count)
	require.True(t, clamped)

	count, clamped = ClampWorkerCount(3, 8)
	require.Equal(t, 3, count)
	require.False(t, clamped)

	logger := &recordingLogger{}
	f := newFixture(t, 100, failingSpawner{}, logger)
	require.Equal(t, 16, f.svc.workerCount())
	require.Len(t, logger.warnings(), 1)
}

func submitRaw(t *testing.T, addr string, filename string, contents []byte) defs.FileResultData {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	payload := defs.SubmitFileData{Filename: filename, Contents: contents}.Encode()
	require.NoError(t, wire.WriteMessage(conn, defs.OpSubmitFile, payload))

	msg, err := wire.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, defs.OpFileResult, msg.Op)
	data, err := defs.DecodeFileResult(msg.Payload)
	require.NoError(t, err)
	return data
}

func TestServeReturnsArtifactToClient(t *testing.T) {
	logger := logging.NewNopLogger()
	compiler := &fakeCompiler{artifact: []byte{0xDE, 0xAD}}
	f := newFixture(t, 1, &goroutineSpawner{compiler: compiler, logger: logger}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.svc.Serve(ctx, queue.NewTaskQueue(), results.NewTable()) }()

	addr := <-f.addr
	// the accept phase takes the first connection as a worker
	require.Eventually(t, func() bool {
		workers, err := f.workerSvc.GetAllWorkers(context.Background())
		return err == nil && len(workers) == 1
	}, 5*time.Second, 10*time.Millisecond)

	data := submitRaw(t, addr, "x.c", []byte("int x;"))
	require.True(t, data.Success)
	require.Equal(t, "x.o", data.Filename)
	require.Equal(t, []byte{0xDE, 0xAD}, data.Data)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeTimesOutWithoutWorkers(t *testing.T) {
	logger := logging.NewNopLogger()
	f := newFixture(t, 0, &goroutineSpawner{compiler: &fakeCompiler{}, logger: logger}, logger)
	f.svc.clusterCfg.ResultTimeout = 100 * time.Millisecond

	taskQueue := queue.NewTaskQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.svc.Serve(ctx, taskQueue, results.NewTable()) }()

	data := submitRaw(t, <-f.addr, "slow.c", []byte("int s;"))
	require.False(t, data.Success)
	require.Equal(t, 1, taskQueue.Len())

	cancel()
	require.NoError(t, <-done)
}
