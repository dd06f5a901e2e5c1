package connectionmanager

import (
	"net"
	"sync"
	"time"

	"gitlab.com/distbuild.net/internal/core/ports/primary"
	"gitlab.com/distbuild.net/internal/tcp/defs"
	"gitlab.com/distbuild.net/internal/tcp/wire"
)

const shutdownWriteTimeout = time.Second

// ConnectionManager tracks live worker connections
type ConnectionManager struct {
	Connections map[string]net.Conn
	ConnMutex   sync.RWMutex
	Logger      primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		Connections: make(map[string]net.Conn),
		Logger:      logger,
	}
}

// RegisterWorker registers a worker connection
func (cm *ConnectionManager) RegisterWorker(workerID string, conn net.Conn) {
	cm.ConnMutex.Lock()
	cm.Connections[workerID] = conn
	cm.ConnMutex.Unlock()
}

// RemoveWorker removes a worker when its connection is closed
func (cm *ConnectionManager) RemoveWorker(workerID string) {
	cm.ConnMutex.Lock()
	delete(cm.Connections, workerID)
	cm.ConnMutex.Unlock()
}

// GetConnection returns the connection for a specific worker
func (cm *ConnectionManager) GetConnection(workerID string) (net.Conn, bool) {
	cm.ConnMutex.RLock()
	defer cm.ConnMutex.RUnlock()

	conn, exists := cm.Connections[workerID]
	return conn, exists
}

// Count returns the number of live worker connections
func (cm *ConnectionManager) Count() int {
	cm.ConnMutex.RLock()
	defer cm.ConnMutex.RUnlock()

	return len(cm.Connections)
}

// WorkerIDs returns the IDs of all live worker connections
func (cm *ConnectionManager) WorkerIDs() []string {
	cm.ConnMutex.RLock()
	defer cm.ConnMutex.RUnlock()

	ids := make([]string, 0, len(cm.Connections))
	for id := range cm.Connections {
		ids = append(ids, id)
	}
	return ids
}

// ShutdownAll sends Shutdown to every worker, best effort, and closes the connections
func (cm *ConnectionManager) ShutdownAll() {
	cm.ConnMutex.Lock()
	defer cm.ConnMutex.Unlock()

	for workerID, conn := range cm.Connections {
		// Ignore errors here as the connection might be closing
		_ = conn.SetWriteDeadline(time.Now().Add(shutdownWriteTimeout))
		_ = wire.WriteMessage(conn, defs.OpShutdown, nil)
		if err := conn.Close(); err != nil {
			cm.Logger.Debug("Failed to close connection", "workerId", workerID, "error", err)
		}
		delete(cm.Connections, workerID)
	}
}
