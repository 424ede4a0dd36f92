// Package chat provides the connection registry, command dispatch and
// broadcast fan-out shared by all transports.
package chat

import "context"

// Conn abstracts a bidirectional connection for both TCP and WebSocket.
type Conn interface {
	// Read returns the bytes of the next read from the peer.
	// Returns io.EOF when the peer has closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends already framed bytes. A deadline on ctx bounds the write.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the peer address captured at accept time.
	RemoteAddr() string
}
