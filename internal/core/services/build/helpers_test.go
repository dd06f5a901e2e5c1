package build

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
)

// fakeCompiler fails any path listed in fail and otherwise writes artifact
// (when set) to the object path
type fakeCompiler struct {
	fail     map[string]string
	artifact []byte
}

func (f *fakeCompiler) Compile(_ context.Context, path string) secondary.CompileResult {
	obj := domain.ArtifactPath(path)
	if diag, ok := f.fail[path]; ok {
		return secondary.CompileResult{Log: diag, ArtifactPath: obj}
	}
	if f.artifact != nil {
		if err := os.WriteFile(obj, f.artifact, 0o644); err != nil {
			return secondary.CompileResult{Log: err.Error(), ArtifactPath: obj}
		}
	}
	return secondary.CompileResult{Success: true, Log: defs.SuccessDiagnostic, ArtifactPath: obj}
}

// goroutineSpawner runs each worker loop in-process instead of forking
type goroutineSpawner struct {
	compiler secondary.Compiler
	logger   primary.Logger

	mu      sync.Mutex
	spawned int
}

func (s *goroutineSpawner) Spawn(_ context.Context, ordinal int, address string) (secondary.WorkerProcess, error) {
	s.mu.Lock()
	s.spawned++
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p := &goroutineProcess{cancel: cancel, done: make(chan struct{})}
	w := worker.NewWorker(strconv.Itoa(ordinal), address, s.compiler, s.logger)
	go func() {
		defer close(p.done)
		p.err = w.Run(ctx)
	}()
	return p, nil
}

func (s *goroutineSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

type goroutineProcess struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *goroutineProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *goroutineProcess) Kill() error {
	p.cancel()
	return nil
}

var errSpawn = errors.New("exec format error")

type failingSpawner struct{}

func (failingSpawner) Spawn(context.Context, int, string) (secondary.WorkerProcess, error) {
	return nil, errSpawn
}

// recordingLogger keeps warnings so tests can assert on them
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(string, ...interface{}) {}
func (l *recordingLogger) Debug(string, ...interface{}) {}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (l *recordingLogger) infoLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.infos...)
}

type memoryReports struct {
	mu      sync.Mutex
	reports []*domain.BuildReport
}

func (m *memoryReports) SaveReport(_ context.Context, report *domain.BuildReport) error {
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	return nil
}

func (m *memoryReports) GetReport(context.Context, uuid.UUID) (*domain.BuildReport, error) {
	return nil, nil
}
