package build

import (
	"context"

	"gitlab.com/distbuild.net/internal/core/services/queue"
	"gitlab.com/distbuild.net/internal/core/services/results"
	"gitlab.com/distbuild.net/internal/domain"
)

// IBuildService runs a coordinator in one of its two configurations
type IBuildService interface {
	// Build compiles a fixed list of files with freshly spawned workers and
	// returns once every worker session and process has ended
	Build(ctx context.Context, files []string) (*domain.BuildReport, error)

	// Serve spawns workers, then accepts client submissions until ctx is done.
	// The queue and table are shared with whoever else observes the server.
	Serve(ctx context.Context, taskQueue *queue.TaskQueue, resultTable *results.Table) error
}
