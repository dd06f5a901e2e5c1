// Package results records completed compilation outcomes keyed by task path.
package results

import (
	"context"
	"sync"
	"time"

	"gitlab.com/distbuild.net/internal/domain"
)

// Table is an append-only list of outcomes. Entries are never removed;
// whoever consumes a match cleans up the files behind it.
type Table struct {
	mu       sync.Mutex
	outcomes []domain.TaskOutcome
	waiters  map[string]*waiter
}

// waiter is shared by every Wait on one path
type waiter struct {
	ch chan struct{}
	n  int
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{waiters: make(map[string]*waiter)}
}

// Record appends an outcome and wakes anyone waiting on its path
func (t *Table) Record(outcome domain.TaskOutcome) {
	if outcome.CompletedAt.IsZero() {
		outcome.CompletedAt = time.Now()
	}

	t.mu.Lock()
	t.outcomes = append(t.outcomes, outcome)
	if w, ok := t.waiters[outcome.Path]; ok {
		close(w.ch)
		delete(t.waiters, outcome.Path)
	}
	t.mu.Unlock()
}

// Find returns the first outcome recorded for path without removing it
func (t *Table) Find(path string) (domain.TaskOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.findLocked(path)
}

// Wait blocks until an outcome for path is recorded or ctx is done
func (t *Table) Wait(ctx context.Context, path string) (domain.TaskOutcome, error) {
	t.mu.Lock()
	if outcome, ok := t.findLocked(path); ok {
		t.mu.Unlock()
		return outcome, nil
	}
	w, ok := t.waiters[path]
	if !ok {
		w = &waiter{ch: make(chan struct{})}
		t.waiters[path] = w
	}
	w.n++
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		t.release(path, w)
		return domain.TaskOutcome{}, ctx.Err()
	case <-w.ch:
	}

	outcome, _ := t.Find(path)
	return outcome, nil
}

// All returns a snapshot of every recorded outcome
func (t *Table) All() []domain.TaskOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.TaskOutcome, len(t.outcomes))
	copy(out, t.outcomes)
	return out
}

// Succeeded counts successful outcomes
func (t *Table) Succeeded() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, o := range t.outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// release drops a cancelled waiter; the last one out removes the entry
func (t *Table) release(path string, w *waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w.n--
	if w.n == 0 && t.waiters[path] == w {
		delete(t.waiters, path)
	}
}

func (t *Table) findLocked(path string) (domain.TaskOutcome, bool) {
	for _, o := range t.outcomes {
		if o.Path == path {
			return o, true
		}
	}
	return domain.TaskOutcome{}, false
}
