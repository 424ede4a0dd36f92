package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tevino/abool"
	"golang.org/x/time/rate"
)

// Handle represents one accepted connection and its display name.
type Handle struct {
	id       string
	address  string
	conn     Conn
	joinedAt time.Time

	mu   sync.RWMutex
	name string

	outbox  chan []byte
	quit    chan struct{}
	closed  *abool.AtomicBool
	limiter *rate.Limiter
}

func newHandle(conn Conn, outboxSize int, limiter *rate.Limiter, now time.Time) *Handle {
	addr := conn.RemoteAddr()
	return &Handle{
		id:       uuid.NewString(),
		address:  addr,
		conn:     conn,
		joinedAt: now,
		name:     addr,
		outbox:   make(chan []byte, outboxSize),
		quit:     make(chan struct{}),
		closed:   abool.New(),
		limiter:  limiter,
	}
}

// ID returns the unique id assigned at accept time.
func (h *Handle) ID() string { return h.id }

// Address returns the peer address. It never changes.
func (h *Handle) Address() string { return h.address }

// Name returns the current display name.
func (h *Handle) Name() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

func (h *Handle) rename(name string) (old string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	old, h.name = h.name, name
	return old
}

// Closed reports whether the handle has been disconnected.
func (h *Handle) Closed() bool {
	return h.closed.IsSet()
}

// enqueue hands a framed message to the handle's writer without blocking.
func (h *Handle) enqueue(frame []byte) error {
	select {
	case <-h.quit:
		return ErrHandleClosed
	default:
	}
	select {
	case h.outbox <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// allow reports whether another inbound frame fits the rate limit.
func (h *Handle) allow() bool {
	return h.limiter == nil || h.limiter.Allow()
}

// close marks the handle closed and releases the socket. It reports false
// if the handle was already closed.
func (h *Handle) close() bool {
	if !h.closed.SetToIf(false, true) {
		return false
	}
	close(h.quit)
	_ = h.conn.Close()
	return true
}

// Peer is a point-in-time view of a registered handle.
type Peer struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (h *Handle) peer() Peer {
	return Peer{
		ID:          h.id,
		Address:     h.address,
		Name:        h.Name(),
		ConnectedAt: h.joinedAt,
	}
}
