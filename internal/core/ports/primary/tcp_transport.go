package primary

import (
	"context"
	"net"
)

// SessionHandler owns one accepted connection from handshake to termination
type SessionHandler interface {
	HandleSession(ctx context.Context, conn net.Conn) error
}
