package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

// ErrResultTimeout is returned when no worker produced a result in time
var ErrResultTimeout = errors.New("compilation timeout")

var _ primary.SessionHandler = (*ClientSubmissionHandler)(nil)

// ClientSubmissionHandler serves one client connection: one SubmitFile in,
// one FileResult out.
type ClientSubmissionHandler struct {
	Queue   *queue.TaskQueue
	Results *results.Table
	Stager  secondary.Stager
	Timeout time.Duration
	Logger  primary.Logger
}

func NewClientSubmissionHandler(
	taskQueue *queue.TaskQueue,
	resultTable *results.Table,
	stager secondary.Stager,
	timeout time.Duration,
	logger primary.Logger,
) *ClientSubmissionHandler {
	if timeout <= 0 {
		timeout = defs.ResultWaitTimeout
	}
	return &ClientSubmissionHandler{
		Queue:   taskQueue,
		Results: resultTable,
		Stager:  stager,
		Timeout: timeout,
		Logger:  logger,
	}
}

// HandleSession implements the SessionHandler interface.
// On timeout the task is left wherever it is; no cancellation reaches the worker.
func (h *ClientSubmissionHandler) HandleSession(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	submission, err := h.readSubmission(conn)
	if err != nil {
		return err
	}
	h.Logger.Info("Client submitted file", "filename", submission.Filename, "bytes", len(submission.Contents))

	stagedPath, err := h.Stager.Stage(submission.Filename, submission.Contents)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", submission.Filename, err)
	}

	h.Queue.Push(domain.Task(stagedPath))
	h.Logger.Info("Queued submission", "path", stagedPath, "queueSize", h.Queue.Len())

	waitCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	outcome, err := h.Results.Wait(waitCtx, stagedPath)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			h.Logger.Warn("Timeout waiting for compilation", "filename", submission.Filename, "timeout", h.Timeout)
			h.writeResult(conn, domain.SubmissionResult{
				Filename:   submission.Filename,
				Diagnostic: ErrResultTimeout.Error(),
			})
			return fmt.Errorf("%w: %s", ErrResultTimeout, submission.Filename)
		}
		return err
	}
	defer h.Stager.Cleanup(stagedPath)

	result := h.buildResult(submission.Filename, stagedPath, outcome)
	if err := h.writeResult(conn, result); err != nil {
		return err
	}

	h.Logger.Info("Sent result to client", "filename", result.Filename, "success", result.Success)
	return nil
}

func (h *ClientSubmissionHandler) readSubmission(conn net.Conn) (domain.Submission, error) {
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("failed to read submission: %w", err)
	}
	if msg.Op != defs.OpSubmitFile {
		return domain.Submission{}, fmt.Errorf("%w: expected SubmitFile, got %s", ErrUnexpectedOpcode, msg.Op)
	}

	data, err := defs.DecodeSubmitFile(msg.Payload)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{Filename: data.Filename, Contents: data.Contents}, nil
}

func (h *ClientSubmissionHandler) buildResult(filename string, stagedPath string, outcome domain.TaskOutcome) domain.SubmissionResult {
	if !outcome.Success {
		return domain.SubmissionResult{Filename: filename, Diagnostic: outcome.Log}
	}

	object, err := h.Stager.ReadArtifact(domain.ArtifactPath(stagedPath))
	if err != nil {
		h.Logger.Error("Failed to read artifact", "path", stagedPath, "error", err)
		return domain.SubmissionResult{
			Filename:   filename,
			Diagnostic: fmt.Sprintf("Failed to read .o file: %v", err),
		}
	}

	return domain.SubmissionResult{
		Success:  true,
		Filename: domain.ArtifactPath(filename),
		Object:   object,
	}
}

func (h *ClientSubmissionHandler) writeResult(conn net.Conn, result domain.SubmissionResult) error {
	data := defs.FileResultData{Success: result.Success, Filename: result.Filename}
	if result.Success {
		data.Data = result.Object
	} else {
		data.Data = []byte(result.Diagnostic)
	}

	if err := wire.WriteMessage(conn, defs.OpFileResult, data.Encode()); err != nil {
		h.Logger.Error("Failed to send result to client", "filename", result.Filename, "error", err)
		return err
	}
	return nil
}
