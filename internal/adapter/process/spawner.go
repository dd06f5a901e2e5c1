package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
)

var _ secondary.WorkerSpawner = (*SelfSpawner)(nil)

// SelfSpawner starts workers as copies of the running executable:
// `<exe> worker <ordinal> --address <addr>`
type SelfSpawner struct {
	executable string
	logger     primary.Logger
}

// NewSelfSpawner resolves the current executable
func NewSelfSpawner(logger primary.Logger) (*SelfSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable: %w", err)
	}
	return &SelfSpawner{executable: exe, logger: logger}, nil
}

// Spawn implements secondary.WorkerSpawner
func (s *SelfSpawner) Spawn(ctx context.Context, ordinal int, address string) (secondary.WorkerProcess, error) {
	cmd := exec.Command(s.executable, "worker", strconv.Itoa(ordinal), "--address", address)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn worker #%d: %w", ordinal, err)
	}
	s.logger.Info("Booted worker process", "ordinal", ordinal, "pid", cmd.Process.Pid)

	return &childProcess{cmd: cmd}, nil
}

type childProcess struct {
	cmd *exec.Cmd
}

func (c *childProcess) Wait() error {
	return c.cmd.Wait()
}

func (c *childProcess) Kill() error {
	return c.cmd.Process.Kill()
}
