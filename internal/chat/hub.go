package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/omochice/caret-chat/pkg/protocol"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultOutboxSize   = 256
	defaultFlushDelay   = 50 * time.Millisecond
)

// Hub owns the connection registry and the broadcast router.
// Every transport hands its accepted connections to a single Hub.
type Hub struct {
	registry *Registry
	router   *Router
	log      zerolog.Logger

	writeTimeout time.Duration
	flushDelay   time.Duration
	outboxSize   int
	rateLimit    rate.Limit
	rateBurst    int
	now          func() time.Time
}

// NewHub creates a Hub. Run must be called for messages to be delivered.
func NewHub(options ...Option) (*Hub, error) {
	h := &Hub{
		registry:     NewRegistry(),
		log:          zerolog.Nop(),
		writeTimeout: defaultWriteTimeout,
		flushDelay:   defaultFlushDelay,
		outboxSize:   defaultOutboxSize,
		now:          time.Now,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(h); err != nil {
			return nil, err
		}
	}
	h.router = NewRouter(h.registry, h.disconnect, h.log)
	return h, nil
}

// Run delivers broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.router.Run(ctx)
	h.registry.ForEach(func(c *Handle) {
		h.disconnect(c, ctx.Err())
	})
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}

// Peers returns a view of every connected client.
func (h *Hub) Peers() []Peer {
	return h.registry.Peers()
}

// Peer returns the client connected from address.
func (h *Hub) Peer(address string) (Peer, bool) {
	c, ok := h.registry.Get(address)
	if !ok {
		return Peer{}, false
	}
	return c.peer(), true
}

// Kick disconnects the client connected from address. It reports false if
// no such client is registered.
func (h *Hub) Kick(address string) bool {
	c, ok := h.registry.RemoveByAddress(address)
	if !ok {
		return false
	}
	h.disconnect(c, ErrKicked)
	return true
}

// Broadcast queues a message for every connected client.
func (h *Hub) Broadcast(label, body string) error {
	return h.router.Send(Outbound{Label: label, Body: body})
}

// Serve registers conn and processes its frames until the peer goes away or
// ctx is done. It always closes conn.
func (h *Hub) Serve(ctx context.Context, conn Conn) error {
	c := newHandle(conn, h.outboxSize, h.newLimiter(), h.now())
	if err := h.registry.Add(c); err != nil {
		_ = conn.Close()
		return fmt.Errorf("register %s: %w", c.address, err)
	}

	log := h.log.With().Str("conn", c.id).Str("addr", c.address).Logger()
	log.Info().Msg("client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		h.disconnect(c, ctx.Err())
	})
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, c, log)
	}()

	h.notify(c.Name() + " connected to chat")

	err := h.readLoop(ctx, c, log)
	if err != nil && !c.Closed() {
		log.Warn().Err(err).Msg("read failed")
	}
	h.disconnect(c, err)

	cancel()
	<-writerDone
	return nil
}

func (h *Hub) newLimiter() *rate.Limiter {
	if h.rateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(h.rateLimit, h.rateBurst)
}

// readLoop returns nil when the peer closes the connection.
func (h *Hub) readLoop(ctx context.Context, c *Handle, log zerolog.Logger) error {
	dec := protocol.NewDecoder(protocol.MaxFrameLen)
	consume := func(next func() []string) {
		dropped := dec.Dropped()
		frames := next()
		if n := dec.Dropped() - dropped; n > 0 {
			log.Debug().Int("frames", n).Msg("dropped oversized frames")
		}
		for _, frame := range frames {
			h.handleFrame(c, frame, log)
		}
	}
	for {
		readCtx, cancel := ctx, context.CancelFunc(func() {})
		if dec.Pending() {
			// A partial frame is carried: wait briefly for the rest of it.
			readCtx, cancel = context.WithTimeout(ctx, h.flushDelay)
		}
		data, err := c.conn.Read(readCtx)
		cancel()
		if err != nil {
			if isTimeout(err) && ctx.Err() == nil && !c.Closed() {
				// The peer went quiet mid-frame, so the tail is a whole
				// frame from a client that never sends the delimiter.
				consume(dec.Flush)
				continue
			}
			if errors.Is(err, io.EOF) {
				consume(dec.Flush)
				return nil
			}
			return err
		}
		if len(data) == 0 {
			return nil
		}
		consume(func() []string { return dec.Feed(data) })
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}

func (h *Hub) handleFrame(c *Handle, frame string, log zerolog.Logger) {
	if !c.allow() {
		log.Debug().Msg("rate limited")
		h.reply(c, "Slow down, message dropped")
		return
	}

	msg := protocol.Parse(frame)
	name := c.Name()
	out := Dispatch(name, msg)
	log.Debug().Stringer("kind", msg.Kind).Msg("frame")

	if out.Rename != "" {
		c.rename(out.Rename)
		log.Info().Str("from", name).Str("to", out.Rename).Msg("renamed")
	}
	if out.Reply != "" {
		h.reply(c, out.Reply)
	}
	if out.Notice != "" {
		h.notify(out.Notice)
	}
	if out.Chat != "" {
		h.publish(Outbound{Label: name, Body: out.Chat})
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *Handle, log zerolog.Logger) {
	for {
		select {
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		case frame := <-c.outbox:
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := c.conn.Write(wctx, frame)
			cancel()
			if err != nil {
				if !c.Closed() {
					log.Warn().Err(err).Msg("write failed")
				}
				h.disconnect(c, err)
				return
			}
		}
	}
}

func (h *Hub) reply(c *Handle, text string) {
	if err := c.enqueue(protocol.EncodeFrame(protocol.LabelSystem, text)); err != nil {
		h.disconnect(c, err)
	}
}

func (h *Hub) notify(text string) {
	h.publish(Outbound{Label: protocol.LabelServer, Body: text})
}

func (h *Hub) publish(msg Outbound) {
	if err := h.router.Send(msg); err != nil {
		ev := h.log.Warn()
		if errors.Is(err, ErrRouterClosed) {
			ev = h.log.Debug()
		}
		ev.Err(err).Str("label", msg.Label).Msg("broadcast not queued")
	}
}

// disconnect removes c from the registry and closes it exactly once.
func (h *Hub) disconnect(c *Handle, cause error) {
	if !c.close() {
		return
	}
	h.registry.Remove(c)

	ev := h.log.Info()
	if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, context.Canceled) {
		ev = ev.AnErr("cause", cause)
	}
	ev.Str("conn", c.id).Str("addr", c.address).Msg("client disconnected")

	h.notify(c.Name() + " left chat")
}
