package tcp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/caret-chat/internal/chat"
	"github.com/omochice/caret-chat/internal/transport/tcp"
)

// echoHandler writes back every read until the peer goes away.
var echoHandler = tcp.HandlerFunc(func(ctx context.Context, conn chat.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}
		if err := conn.Write(ctx, data); err != nil {
			return nil
		}
	}
})

func startServer(t *testing.T, handler tcp.Handler) *tcp.Server {
	t.Helper()
	srv := tcp.New("127.0.0.1:0", handler, zerolog.Nop())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go srv.Serve()
	return srv
}

func TestServer_Start(t *testing.T) {
	srv := startServer(t, echoHandler)
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ping^")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(buf[:n]) != "ping^" {
		t.Errorf("echo = %q, want %q", buf[:n], "ping^")
	}
}

func TestServer_ListenError(t *testing.T) {
	srv := startServer(t, echoHandler)
	defer srv.Stop()

	dup := tcp.New(srv.Addr(), echoHandler, zerolog.Nop())
	if err := dup.Listen(); err == nil {
		dup.Stop()
		t.Error("Listen() on a bound address succeeded")
	}
}

func TestServer_ServeBeforeListen(t *testing.T) {
	srv := tcp.New("127.0.0.1:0", echoHandler, zerolog.Nop())
	if err := srv.Serve(); err == nil {
		t.Error("Serve() before Listen() succeeded")
	}
}

func TestServer_Addr(t *testing.T) {
	srv := tcp.New("127.0.0.1:0", echoHandler, zerolog.Nop())
	if addr := srv.Addr(); addr != "" {
		t.Errorf("Addr() before Listen = %q, want empty", addr)
	}

	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer srv.Stop()

	if addr := srv.Addr(); addr == "" {
		t.Error("Addr() returned empty string")
	}
}

func TestServer_Stop(t *testing.T) {
	srv := startServer(t, echoHandler)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return with an open connection")
	}

	if _, err := net.Dial("tcp", srv.Addr()); err == nil {
		t.Error("expected error after stop, got nil")
	}
}
