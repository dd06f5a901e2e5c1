package handlers

import (
	"context"
	"net"

	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

// dispatchTask hands one task to the worker as a TaskDef frame
func (h *WorkerSessionHandler) dispatchTask(ctx context.Context, conn net.Conn, info *domain.WorkerInfo, task domain.Task) error {
	if err := h.WorkerService.TaskStarted(ctx, info.ID, task); err != nil {
		h.Logger.Warn("Failed to mark task started", "workerId", info.ID, "error", err)
	}

	if err := wire.WriteMessage(conn, defs.OpTaskDef, []byte(task)); err != nil {
		h.Logger.Error("Failed to send task, task lost", "worker", info.Name, "task", task, "error", err)
		return sessionError(info.Name, err)
	}

	h.Logger.Info("Task assigned to worker", "task", task, "worker", info.Name)
	return nil
}
