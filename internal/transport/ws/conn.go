// Package ws provides WebSocket transport implementation for the chat server.
// Each WebSocket message carries one or more caret-delimited frames.
package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/caret-chat/pkg/protocol"
)

const closeTimeout = time.Second

// maxMessageSize bounds one inbound message. A larger message is discarded
// unread, the same fate as an oversized frame on the TCP transport.
const maxMessageSize = protocol.ReadBufferSize

// Conn adapts a server side gobwas/ws connection to chat.Conn interface.
type Conn struct {
	conn   net.Conn
	reader *wsutil.Reader
	addr   string

	writeMu sync.Mutex
}

// NewConn wraps an upgraded connection. src is read instead of conn when the
// upgrade left handshake bytes buffered; it may be nil.
func NewConn(conn net.Conn, src io.Reader, addr string) *Conn {
	if src == nil {
		src = conn
	}
	if addr == "" {
		addr = conn.RemoteAddr().String()
	}
	c := &Conn{conn: conn, addr: addr}
	c.reader = &wsutil.Reader{
		Source:    src,
		State:     ws.StateServerSide,
		CheckUTF8: true,
	}
	c.reader.OnIntermediate = c.handleControl
	return c
}

// Read implements chat.Conn.
// Returns the payload of the next data message. A WebSocket message is a
// complete unit, so a missing trailing delimiter is added and the deadline of
// ctx is not applied. Messages over maxMessageSize are skipped.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, mapError(err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, c.reader); err != nil {
				return nil, mapError(err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, mapError(err)
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(c.reader, maxMessageSize+1))
		if err != nil {
			return nil, mapError(err)
		}
		if len(data) > maxMessageSize {
			if err := c.reader.Discard(); err != nil {
				return nil, mapError(err)
			}
			continue
		}
		if len(data) == 0 || data[len(data)-1] != protocol.Delimiter {
			data = append(data, protocol.Delimiter)
		}
		return data, nil
	}
}

// Write implements chat.Conn.
// Sends data as a single text message.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	var buf bytes.Buffer
	if err := ws.WriteFrame(&buf, ws.NewTextFrame(data)); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	return c.writeRaw(buf.Bytes(), deadline)
}

// Close implements chat.Conn.
// Sends a close frame, best effort, before closing the socket. The frame is
// skipped while another write is in flight so Close never waits on a stuck
// peer.
func (c *Conn) Close() error {
	if c.writeMu.TryLock() {
		var buf bytes.Buffer
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		if err := ws.WriteFrame(&buf, ws.NewCloseFrame(body)); err == nil {
			if err := c.conn.SetWriteDeadline(time.Now().Add(closeTimeout)); err == nil {
				_, _ = c.conn.Write(buf.Bytes())
			}
		}
		c.writeMu.Unlock()
	}
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// handleControl answers pings and close frames. Replies are buffered so a
// control frame is never interleaved with a concurrent data write.
func (c *Conn) handleControl(hdr ws.Header, r io.Reader) error {
	var buf bytes.Buffer
	err := wsutil.ControlFrameHandler(&buf, ws.StateServerSide)(hdr, r)
	if buf.Len() > 0 {
		if werr := c.writeRaw(buf.Bytes(), time.Now().Add(closeTimeout)); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (c *Conn) writeRaw(p []byte, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := c.conn.Write(p)
	return err
}

// mapError reports a WebSocket close handshake as io.EOF.
func mapError(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return err
}
