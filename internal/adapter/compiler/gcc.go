package compiler

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/core/ports/secondary"
	"gitlab.com/distbuild.net/internal/domain"
	"gitlab.com/distbuild.net/internal/tcp/defs"
)

var _ secondary.Compiler = (*GCC)(nil)

// GCC runs `<command> -c src -o obj`
type GCC struct {
	command string
	logger  primary.Logger
}

// NewGCC creates a compiler adapter for a gcc-compatible command
func NewGCC(command string, logger primary.Logger) *GCC {
	if command == "" {
		command = "gcc"
	}
	return &GCC{command: command, logger: logger}
}

// Compile implements secondary.Compiler
func (g *GCC) Compile(ctx context.Context, sourcePath string) secondary.CompileResult {
	artifact := domain.ArtifactPath(sourcePath)
	result := secondary.CompileResult{ArtifactPath: artifact}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.command, "-c", sourcePath, "-o", artifact)
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.Log = defs.SuccessDiagnostic
	case errors.As(err, &exitErr):
		result.Log = stderr.String()
		g.logger.Debug("Compiler reported failure", "source", sourcePath, "exitCode", exitErr.ExitCode())
	default:
		// the tool could not be launched at all
		result.Log = err.Error()
		g.logger.Error("Failed to launch compiler", "command", g.command, "error", err)
	}

	return result
}
