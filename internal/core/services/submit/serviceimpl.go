package submit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

var (
	// ErrNotSource is returned for paths that do not name a C source file
	ErrNotSource = errors.New("not a .c file")
	// ErrCompileFailed wraps the server's diagnostic for a failed compile
	ErrCompileFailed = errors.New("compilation failed")
	// ErrSubmissionFailed is returned by SubmitFiles when any file failed
	ErrSubmissionFailed = errors.New("one or more submissions failed")
)

var _ ISubmitService = &SubmitService{}

// SubmitService implements the ISubmitService interface
type SubmitService struct {
	serverAddr string
	logger     primary.Logger
	dialer     net.Dialer
}

// NewSubmitService creates a client for the build server at serverAddr
func NewSubmitService(serverAddr string, logger primary.Logger) *SubmitService {
	return &SubmitService{serverAddr: serverAddr, logger: logger}
}

// SubmitFiles implements ISubmitService
func (s *SubmitService) SubmitFiles(ctx context.Context, files []string) (*Summary, error) {
	s.logger.Info("Submitting files", "server", s.serverAddr, "files", len(files))

	reports := make([]FileReport, len(files))
	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			reports[i] = s.SubmitFile(ctx, path)
		}(i, path)
	}
	wg.Wait()

	summary := &Summary{Total: len(files), Files: reports}
	for _, r := range reports {
		if r.Success {
			summary.Succeeded++
		}
	}

	s.logger.Info(summary.String())
	if summary.Succeeded != summary.Total {
		return summary, ErrSubmissionFailed
	}
	return summary, nil
}

// SubmitFile implements ISubmitService
func (s *SubmitService) SubmitFile(ctx context.Context, path string) FileReport {
	report := FileReport{Path: path}

	artifact, err := s.submit(ctx, path)
	if err != nil {
		s.logger.Error("Error submitting file", "path", path, "error", err)
		report.Err = err
		return report
	}

	report.Success = true
	report.Artifact = artifact
	return report
}

func (s *SubmitService) submit(ctx context.Context, path string) (string, error) {
	if !strings.HasSuffix(path, ".c") {
		return "", ErrNotSource
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", s.serverAddr)
	if err != nil {
		return "", fmt.Errorf("failed to connect to build server: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("Submitting file", "path", path)
	payload := defs.SubmitFileData{Filename: filepath.Base(path), Contents: contents}.Encode()
	if err := wire.WriteMessage(conn, defs.OpSubmitFile, payload); err != nil {
		return "", err
	}

	msg, err := wire.ReadMessage(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read result: %w", err)
	}
	if msg.Op != defs.OpFileResult {
		return "", fmt.Errorf("unexpected response from server: %s", msg.Op)
	}
	result, err := defs.DecodeFileResult(msg.Payload)
	if err != nil {
		return "", err
	}

	if !result.Success {
		return "", fmt.Errorf("%w: %s", ErrCompileFailed, string(result.Data))
	}

	output := domain.ArtifactPath(path)
	if err := os.WriteFile(output, result.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	s.logger.Info("Received artifact", "filename", result.Filename, "output", output)
	return output, nil
}
