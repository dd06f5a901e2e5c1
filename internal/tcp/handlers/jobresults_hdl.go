package handlers

import (
	"context"
	"fmt"
	"net"

	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

// collectResult blocks for the worker's TaskResult and records it.
// Nothing is recorded for task if the read fails or the frame is wrong.
func (h *WorkerSessionHandler) collectResult(ctx context.Context, conn net.Conn, info *domain.WorkerInfo, task domain.Task) error {
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		h.Logger.Error("Failed to read task result, task lost", "worker", info.Name, "task", task, "error", err)
		return sessionError(info.Name, err)
	}
	if msg.Op != defs.OpTaskResult {
		h.Logger.Error("Expected task result", "worker", info.Name, "op", msg.Op)
		return sessionError(info.Name, fmt.Errorf("%w: expected TaskResult, got %s", ErrUnexpectedOpcode, msg.Op))
	}

	resultData, err := defs.DecodeTaskResult(msg.Payload)
	if err != nil {
		h.Logger.Error("Failed to parse task result", "worker", info.Name, "error", err)
		return sessionError(info.Name, err)
	}

	h.Results.Record(domain.TaskOutcome{
		Path:     string(task),
		Success:  resultData.Success,
		Log:      resultData.Diagnostic,
		WorkerID: info.ID,
	})

	if err := h.WorkerService.TaskFinished(ctx, info.ID); err != nil {
		h.Logger.Warn("Failed to mark task finished", "workerId", info.ID, "error", err)
	}

	h.Logger.Info("Task result received", "task", task, "worker", info.Name, "success", resultData.Success)
	return nil
}
