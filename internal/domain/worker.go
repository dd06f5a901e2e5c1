package domain

import "time"

// WorkerInfo describes a worker connected to the coordinator
type WorkerInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	CurrentTask string    `json:"current_task,omitempty"`
	TasksDone   int       `json:"tasks_done"`
}

// Busy reports whether the worker has a task in flight
func (w *WorkerInfo) Busy() bool {
	return w.CurrentTask != ""
}
