package secondary

import (
	"context"
)

// CompileResult is the outcome of one external compiler invocation
type CompileResult struct {
	Success      bool
	Log          string
	ArtifactPath string
}

type Compiler interface {
	// Compile compiles sourcePath into its artifact. A compiler that fails to
	// launch is reported as an unsuccessful result, not an error.
	Compile(ctx context.Context, sourcePath string) CompileResult
}
