package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// maxMessageSize bounds one WebSocket message from the server. Larger
// messages are skipped.
const maxMessageSize = protocol.ReadBufferSize

// Connection is the client side of a chat connection.
type Connection interface {
	// Write sends data to the server
	Write(data []byte) error

	// Read receives the next chunk of data from the server
	Read() ([]byte, error)

	// Close closes the connection
	Close() error

	// LocalAddr returns the address the server knows this client by
	LocalAddr() string
}

// Dial connects to address. ws:// and wss:// URLs use WebSocket; anything
// else is a host:port for raw TCP.
func Dial(ctx context.Context, address string) (Connection, error) {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		conn, br, _, err := ws.Dial(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		var src io.Reader
		if br != nil {
			src = br
		}
		return NewWebSocketConnection(conn, src), nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewTCPConnection(conn), nil
}

// TCPConnection wraps net.Conn for TCP connections
type TCPConnection struct {
	conn net.Conn
	buf  []byte
}

// NewTCPConnection creates a new TCP connection wrapper
func NewTCPConnection(conn net.Conn) *TCPConnection {
	return &TCPConnection{conn: conn, buf: make([]byte, protocol.ReadBufferSize)}
}

func (tc *TCPConnection) Write(data []byte) error {
	_, err := tc.conn.Write(data)
	return err
}

func (tc *TCPConnection) Read() ([]byte, error) {
	n, err := tc.conn.Read(tc.buf)
	if n > 0 {
		return append([]byte(nil), tc.buf[:n]...), nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (tc *TCPConnection) Close() error {
	return tc.conn.Close()
}

func (tc *TCPConnection) LocalAddr() string {
	return tc.conn.LocalAddr().String()
}

// WebSocketConnection wraps net.Conn for WebSocket connections using gobwas/ws
type WebSocketConnection struct {
	conn   net.Conn
	reader *wsutil.Reader
	mu     sync.Mutex
}

// NewWebSocketConnection creates a new WebSocket connection wrapper. br holds
// frames buffered during the handshake and may be nil.
func NewWebSocketConnection(conn net.Conn, br io.Reader) *WebSocketConnection {
	var src io.Reader = conn
	if br != nil {
		src = br
	}
	wc := &WebSocketConnection{conn: conn}
	wc.reader = &wsutil.Reader{
		Source:    src,
		State:     ws.StateClientSide,
		CheckUTF8: true,
	}
	wc.reader.OnIntermediate = wc.handleControl
	return wc
}

func (wc *WebSocketConnection) Write(data []byte) error {
	var buf bytes.Buffer
	if err := ws.WriteFrame(&buf, ws.MaskFrameInPlace(ws.NewTextFrame(data))); err != nil {
		return err
	}
	return wc.writeRaw(buf.Bytes())
}

func (wc *WebSocketConnection) Read() ([]byte, error) {
	for {
		hdr, err := wc.reader.NextFrame()
		if err != nil {
			return nil, closedAsEOF(err)
		}
		if hdr.OpCode.IsControl() {
			if err := wc.handleControl(hdr, wc.reader); err != nil {
				return nil, closedAsEOF(err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := wc.reader.Discard(); err != nil {
				return nil, closedAsEOF(err)
			}
			continue
		}
		data, err := io.ReadAll(io.LimitReader(wc.reader, maxMessageSize+1))
		if err != nil {
			return nil, closedAsEOF(err)
		}
		if len(data) > maxMessageSize {
			if err := wc.reader.Discard(); err != nil {
				return nil, closedAsEOF(err)
			}
			continue
		}
		return data, nil
	}
}

func (wc *WebSocketConnection) Close() error {
	var buf bytes.Buffer
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	if err := ws.WriteFrame(&buf, ws.MaskFrameInPlace(ws.NewCloseFrame(body))); err == nil {
		_ = wc.writeRaw(buf.Bytes())
	}
	return wc.conn.Close()
}

func (wc *WebSocketConnection) LocalAddr() string {
	return wc.conn.LocalAddr().String()
}

func (wc *WebSocketConnection) handleControl(hdr ws.Header, r io.Reader) error {
	var buf bytes.Buffer
	err := wsutil.ControlFrameHandler(&buf, ws.StateClientSide)(hdr, r)
	if buf.Len() > 0 {
		if werr := wc.writeRaw(buf.Bytes()); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func (wc *WebSocketConnection) writeRaw(p []byte) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	_, err := wc.conn.Write(p)
	return err
}

func closedAsEOF(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return err
}
