package handlers

import (
	"context"
	"fmt"
	"net"
	"time"

	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

// awaitHello reads the single Hello frame that opens every worker session
// and registers the worker
func (h *WorkerSessionHandler) awaitHello(ctx context.Context, conn net.Conn) (*domain.WorkerInfo, error) {
	remote := conn.RemoteAddr().String()

	// Set initial timeout for registration
	_ = conn.SetReadDeadline(time.Now().Add(defs.InitialRegistrationTimeout))

	msg, err := wire.ReadMessage(conn)
	if err != nil {
		h.Logger.Error("Failed to read worker hello", "addr", remote, "error", err)
		return nil, sessionError(remote, fmt.Errorf("failed to read hello: %w", err))
	}
	if msg.Op != defs.OpHello {
		h.Logger.Error("Expected hello", "addr", remote, "op", msg.Op)
		return nil, sessionError(remote, fmt.Errorf("%w: expected Hello, got %s", ErrUnexpectedOpcode, msg.Op))
	}

	// After successful registration, remove timeout
	_ = conn.SetReadDeadline(time.Time{})

	info, err := h.WorkerService.RegisterWorker(ctx, string(msg.Payload), remote)
	if err != nil {
		return nil, sessionError(remote, err)
	}
	h.ConnectionMgr.RegisterWorker(info.ID, conn)

	return info, nil
}
