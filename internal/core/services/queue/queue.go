// Package queue holds the pending compilation tasks shared by all worker sessions.
package queue

import (
	"context"
	"errors"
	"sync"

	"gitlab.com/distbuild.net/internal/domain"
)

// ErrClosed is returned by Pop once the queue is closed and drained
var ErrClosed = errors.New("task queue closed")

// TaskQueue is a mutex-protected stack of pending task paths.
// The most recently pushed task is handed out first.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  []domain.Task
	closed bool
	// notify is closed and replaced whenever tasks arrive or the queue closes
	notify chan struct{}
}

// NewTaskQueue creates a queue seeded with tasks
func NewTaskQueue(tasks ...domain.Task) *TaskQueue {
	q := &TaskQueue{notify: make(chan struct{})}
	q.tasks = append(q.tasks, tasks...)
	return q
}

// Push adds a task. It never blocks.
func (q *TaskQueue) Push(task domain.Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.wakeLocked()
	q.mu.Unlock()
}

// TryPop removes the most recently pushed task, or reports false when empty
func (q *TaskQueue) TryPop() (domain.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.popLocked()
}

// Pop blocks until a task is available, the queue is closed and empty,
// or ctx is done.
func (q *TaskQueue) Pop(ctx context.Context) (domain.Task, error) {
	for {
		q.mu.Lock()
		if task, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return "", ErrClosed
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wait:
		}
	}
}

// Close marks the workload as final. Pending tasks can still be popped.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.wakeLocked()
	}
	q.mu.Unlock()
}

// Len returns the number of pending tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}

// Contains reports whether task is still pending
func (q *TaskQueue) Contains(task domain.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range q.tasks {
		if t == task {
			return true
		}
	}
	return false
}

func (q *TaskQueue) popLocked() (domain.Task, bool) {
	n := len(q.tasks)
	if n == 0 {
		return "", false
	}
	task := q.tasks[n-1]
	q.tasks = q.tasks[:n-1]
	return task, true
}

func (q *TaskQueue) wakeLocked() {
	close(q.notify)
	q.notify = make(chan struct{})
}
