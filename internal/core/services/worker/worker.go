package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

// Worker is the remote executor: it connects back to the coordinator,
// announces itself and compiles whatever it is handed until told to stop.
type Worker struct {
	ID         string
	Address    string
	RetryDelay time.Duration
	Compiler   secondary.Compiler
	Logger     primary.Logger
	dialer     net.Dialer
}

func NewWorker(id string, address string, compiler secondary.Compiler, logger primary.Logger) *Worker {
	return &Worker{
		ID:         id,
		Address:    address,
		RetryDelay: defs.ConnectRetryDelay,
		Compiler:   compiler,
		Logger:     logger,
	}
}

// Run connects, sends Hello and serves tasks. It returns nil on Shutdown or
// when the coordinator closes the connection.
func (w *Worker) Run(ctx context.Context) error {
	conn, err := w.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock the read loop when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	return w.Serve(ctx, conn)
}

// Serve runs the handshake and dispatch loop on an established connection
func (w *Worker) Serve(ctx context.Context, conn net.Conn) error {
	if err := wire.WriteMessage(conn, defs.OpHello, []byte(defs.WorkerName(w.ID))); err != nil {
		return fmt.Errorf("failed to announce worker: %w", err)
	}

	for {
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				w.Logger.Debug("Coordinator connection ended", "worker", w.ID, "error", err)
			}
			return nil
		}

		switch msg.Op {
		case defs.OpTaskDef:
			if err := w.handleTask(ctx, conn, string(msg.Payload)); err != nil {
				return err
			}
		case defs.OpShutdown:
			w.Logger.Info("Shutdown received", "worker", w.ID)
			return nil
		default:
			// not expected in this state
		}
	}
}

func (w *Worker) handleTask(ctx context.Context, conn net.Conn, path string) error {
	w.Logger.Info("Compiling", "worker", w.ID, "path", path)

	result := w.Compiler.Compile(ctx, path)
	payload := defs.TaskResultData{Success: result.Success, Diagnostic: result.Log}.Encode()

	if err := wire.WriteMessage(conn, defs.OpTaskResult, payload); err != nil {
		return fmt.Errorf("failed to report result for %s: %w", path, err)
	}
	return nil
}

// connect retries forever at a fixed interval until the coordinator accepts
func (w *Worker) connect(ctx context.Context) (net.Conn, error) {
	for {
		conn, err := w.dialer.DialContext(ctx, "tcp", w.Address)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.RetryDelay):
		}
	}
}
