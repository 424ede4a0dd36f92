package chat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omochice/caret-chat/internal/chat"
	"github.com/omochice/caret-chat/pkg/protocol"
)

var errMockClosed = errors.New("mock: use of closed connection")

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	remoteAddr string

	writtenMu  sync.Mutex
	written    [][]byte
	attempts   int
	writeErr   error
	writeBlock chan struct{}
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 128),
		done:       make(chan struct{}),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, errMockClosed
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	m.writtenMu.Lock()
	m.attempts++
	writeErr, block := m.writeErr, m.writeBlock
	m.writtenMu.Unlock()

	if writeErr != nil {
		return writeErr
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return errMockClosed
		}
	}
	select {
	case <-m.done:
		return errMockClosed
	default:
	}

	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// send simulates the peer writing text.
func (m *mockConn) send(text string) {
	m.readCh <- []byte(text)
}

// hangUp simulates the peer closing its side.
func (m *mockConn) hangUp() {
	close(m.readCh)
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *mockConn) writeAttempts() int {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	return m.attempts
}

// frames decodes everything written to the connection so far.
func (m *mockConn) frames() []string {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	var all []byte
	for _, w := range m.written {
		all = append(all, w...)
	}
	return protocol.DecodeFrames(all)
}

// chatFrames returns written frames that are not Server notices.
func (m *mockConn) chatFrames() []string {
	var out []string
	for _, f := range m.frames() {
		if !strings.HasPrefix(f, protocol.LabelServer+": ") {
			out = append(out, f)
		}
	}
	return out
}

func (m *mockConn) hasFrame(want string) bool {
	for _, f := range m.frames() {
		if f == want {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
