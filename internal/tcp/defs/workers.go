package defs

import "fmt"

// WorkerName is the identity a worker announces in its Hello frame
func WorkerName(ordinal string) string {
	return fmt.Sprintf("Worker-%s", ordinal)
}
