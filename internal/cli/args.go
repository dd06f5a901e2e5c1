// Package cli parses the distbuild command line.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"gitlab.com/distbuild.net/internal/config"
)

const (
	CommandBuild  = "build"
	CommandServe  = "serve"
	CommandSubmit = "submit"
	CommandWorker = "worker"
)

// ErrUsage is returned for an invocation that cannot be parsed
var ErrUsage = errors.New("usage: distbuild <build|serve|submit> [args]")

// Invocation is one parsed command line. Flags that were not given leave the
// configuration values untouched.
type Invocation struct {
	Command  string
	Files    []string
	WorkerID string
}

// Parse reads args (without the program name) and applies any flag overrides to cfg
func Parse(args []string, cfg *config.AppConfig) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{}, ErrUsage
	}
	inv := Invocation{Command: args[0]}

	fs := flag.NewFlagSet(inv.Command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch inv.Command {
	case CommandBuild, CommandServe:
		fs.IntVar(&cfg.Cluster.WorkerCount, "workers", cfg.Cluster.WorkerCount, "number of worker processes")
		fs.StringVar(&cfg.Cluster.Address, "address", cfg.Cluster.Address, "coordinator listen address")
	case CommandSubmit:
		fs.StringVar(&cfg.Cluster.Address, "server", cfg.Cluster.Address, "build server address")
	case CommandWorker:
		fs.StringVar(&cfg.Cluster.Address, "address", cfg.Cluster.Address, "coordinator address")
	default:
		return Invocation{}, fmt.Errorf("%w: unknown command %q", ErrUsage, inv.Command)
	}

	positional, err := parseInterspersed(fs, args[1:])
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if cfg.Cluster.WorkerCount < 0 {
		return Invocation{}, fmt.Errorf("%w: --workers must not be negative", ErrUsage)
	}

	switch inv.Command {
	case CommandBuild, CommandSubmit:
		inv.Files = positional
	case CommandServe:
		if len(positional) > 0 {
			return Invocation{}, fmt.Errorf("%w: serve takes no files", ErrUsage)
		}
	case CommandWorker:
		if len(positional) != 1 {
			return Invocation{}, fmt.Errorf("%w: worker <id>", ErrUsage)
		}
		inv.WorkerID = positional[0]
	}
	return inv, nil
}

// parseInterspersed lets flags appear before, between or after positionals
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
