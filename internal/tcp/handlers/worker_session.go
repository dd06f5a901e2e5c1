package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/core/services/worker"
	"gitlab.com/distbuild.net/internal/tcp/connectionmanager"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

// ErrUnexpectedOpcode is returned when a peer sends a frame that is not valid in the session's state
var ErrUnexpectedOpcode = errors.New("unexpected opcode")

var _ primary.SessionHandler = (*WorkerSessionHandler)(nil)

// WorkerSessionHandler drives one connected worker: handshake, then
// alternately hand it a task and collect the result.
type WorkerSessionHandler struct {
	Queue         *queue.TaskQueue
	Results       *results.Table
	WorkerService worker.IWorkerRegistrationService
	ConnectionMgr *connectionmanager.ConnectionManager
	Logger        primary.Logger
}

func NewWorkerSessionHandler(
	taskQueue *queue.TaskQueue,
	resultTable *results.Table,
	workerService worker.IWorkerRegistrationService,
	connectionMgr *connectionmanager.ConnectionManager,
	logger primary.Logger,
) *WorkerSessionHandler {
	return &WorkerSessionHandler{
		Queue:         taskQueue,
		Results:       resultTable,
		WorkerService: workerService,
		ConnectionMgr: connectionMgr,
		Logger:        logger,
	}
}

// HandleSession implements the SessionHandler interface.
// A task handed to a worker whose connection then fails is lost, not requeued.
func (h *WorkerSessionHandler) HandleSession(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	info, err := h.awaitHello(ctx, conn)
	if err != nil {
		return err
	}
	defer func() {
		h.ConnectionMgr.RemoveWorker(info.ID)
		if err := h.WorkerService.UnregisterWorker(context.Background(), info.ID); err != nil {
			h.Logger.Error("Failed to unregister worker", "workerId", info.ID, "error", err)
		}
	}()

	for {
		task, err := h.Queue.Pop(ctx)
		if errors.Is(err, queue.ErrClosed) {
			h.Logger.Info("Workload drained, releasing worker", "worker", info.Name)
			// Ignore errors here as the worker might already be gone
			_ = wire.WriteMessage(conn, defs.OpShutdown, nil)
			return nil
		}
		if err != nil {
			// server stopping
			return nil
		}

		if err := h.dispatchTask(ctx, conn, info, task); err != nil {
			return err
		}
		if err := h.collectResult(ctx, conn, info, task); err != nil {
			return err
		}
	}
}

func sessionError(worker string, err error) error {
	return fmt.Errorf("worker session %s: %w", worker, err)
}
