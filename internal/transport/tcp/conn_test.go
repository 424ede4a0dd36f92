package tcp_test

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/omochice/caret-chat/internal/chat"
	"github.com/omochice/caret-chat/internal/transport/tcp"
	"github.com/omochice/caret-chat/pkg/protocol"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		server.Write([]byte("test message^"))
		server.Close()
	}()

	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "test message^" {
		t.Errorf("Read() = %q, want %q", string(data), "test message^")
	}

	if _, err := conn.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Read() after peer close error = %v, want io.EOF", err)
	}
}

func TestConn_ReadIsBounded(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		server.Write([]byte(strings.Repeat("a", protocol.ReadBufferSize+10)))
	}()

	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != protocol.ReadBufferSize {
		t.Errorf("Read() returned %d bytes, want %d", len(data), protocol.ReadBufferSize)
	}
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		err := conn.Write(context.Background(), []byte("hello^"))
		if err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	buf := make([]byte, 1024)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server read error: %v", err)
	}
	if string(buf[:n]) != "hello^" {
		t.Errorf("server received %q, want %q", string(buf[:n]), "hello^")
	}
}

func TestConn_WriteHonorsDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	// Nobody reads from server, so the write can only end by deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := conn.Write(ctx, []byte("stuck"))
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Write() error = %v, want deadline exceeded", err)
	}
}

func TestConn_ReadHonorsDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(server)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.Read(ctx)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("Read() error = %v, want deadline exceeded", err)
	}

	// A read without a deadline clears the previous one.
	go func() {
		time.Sleep(40 * time.Millisecond)
		_, _ = client.Write([]byte("late^"))
	}()
	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "late^" {
		t.Errorf("Read() = %q, want %q", data, "late^")
	}
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client)

	err := conn.Close()
	if err != nil {
		t.Errorf("Close() error = %v", err)
	}

	_, err = client.Read(make([]byte, 1))
	if err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	addr := conn.RemoteAddr()
	if addr == "" {
		t.Error("RemoteAddr() returned empty string")
	}
}
