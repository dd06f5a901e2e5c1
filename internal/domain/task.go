package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a staged source file awaiting compilation. The path is its identity.
type Task string

// TaskOutcome is one Result Table entry
type TaskOutcome struct {
	Path        string    `json:"path" db:"path"`
	Success     bool      `json:"success" db:"success"`
	Log         string    `json:"log" db:"log"`
	WorkerID    string    `json:"worker_id,omitempty" db:"worker_id"`
	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
}

// BuildReport summarises one controller-mode run
type BuildReport struct {
	RunID      uuid.UUID     `json:"run_id" db:"run_id"`
	Total      int           `json:"total" db:"total"`
	Succeeded  int           `json:"succeeded" db:"succeeded"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
	FinishedAt time.Time     `json:"finished_at" db:"finished_at"`
	Outcomes   []TaskOutcome `json:"outcomes"`
}

// Passed reports whether every task in the run compiled
func (r *BuildReport) Passed() bool {
	return r.Total > 0 && r.Succeeded == r.Total
}

// CountLine is the "Build Complete" tally printed after a run
func (r *BuildReport) CountLine() string {
	return fmt.Sprintf("Build Complete: %d/%d Succeeded.", r.Succeeded, r.Total)
}

// VerdictLine is the pass/fail summary printed after the tally
func (r *BuildReport) VerdictLine() string {
	if r.Passed() {
		return "All files compiled successfully to .o files."
	}
	return "Some files failed. Check stdout for details."
}

// Find returns the outcome recorded for path
func (r *BuildReport) Find(path string) (TaskOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Path == path {
			return o, true
		}
	}
	return TaskOutcome{}, false
}

// ArtifactPath maps a source path to its object file path
func ArtifactPath(source string) string {
	if strings.HasSuffix(source, ".c") {
		return strings.TrimSuffix(source, ".c") + ".o"
	}
	return source + ".o"
}
