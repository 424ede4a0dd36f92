// Package tcp provides the raw TCP transport for the chat server.
package tcp

import (
	"context"
	"net"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn net.Conn
	addr string
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, addr: conn.RemoteAddr().String()}
}

// Read implements chat.Conn.
// Reads at most protocol.ReadBufferSize bytes from the TCP connection.
// The deadline of ctx, if any, bounds the read.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	buf := make([]byte, protocol.ReadBufferSize)
	n, err := c.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// Write implements chat.Conn. The deadline of ctx, if any, bounds the write.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := c.conn.Write(data)
	return err
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.addr
}
