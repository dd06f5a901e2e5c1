package submit

import (
	"context"
	"fmt"
)

// FileReport is the outcome of submitting one file
type FileReport struct {
	Path     string
	Success  bool
	Artifact string
	Err      error
}

// Summary aggregates the outcome of one submit invocation
type Summary struct {
	Total     int
	Succeeded int
	Files     []FileReport
}

func (s *Summary) String() string {
	return fmt.Sprintf("Submission complete: %d/%d files succeeded.", s.Succeeded, s.Total)
}

// Failed returns the reports of every file that did not compile
func (s *Summary) Failed() []FileReport {
	var failed []FileReport
	for _, f := range s.Files {
		if !f.Success {
			failed = append(failed, f)
		}
	}
	return failed
}

// ISubmitService sends source files to a build server
type ISubmitService interface {
	// SubmitFiles submits every file concurrently, one connection per file
	SubmitFiles(ctx context.Context, files []string) (*Summary, error)

	// SubmitFile submits a single file and writes its artifact next to it
	SubmitFile(ctx context.Context, path string) FileReport
}
