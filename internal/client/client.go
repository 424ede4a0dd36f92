// Package client implements the chat client used by the terminal UI.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/omochice/caret-chat/pkg/protocol"
)

// ErrNotConnected is returned by Send before Connect or after Disconnect.
var ErrNotConnected = errors.New("not connected to server")

// Client represents a chat client
type Client struct {
	address string
	name    string

	mu       sync.RWMutex
	conn     Connection
	messages chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Client instance. A non-empty name is requested right
// after connecting. A Client connects at most once.
func New(address, name string) *Client {
	return &Client{
		address:  address,
		name:     name,
		messages: make(chan string, 64),
		done:     make(chan struct{}),
	}
}

// Connect establishes a connection to the server
func (c *Client) Connect(ctx context.Context) error {
	conn, err := Dial(ctx, c.address)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveMessages(conn)

	if c.name != "" {
		if err := c.Send("/name " + c.name); err != nil {
			c.Disconnect()
			return err
		}
	}
	return nil
}

// Disconnect closes the connection to the server
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// LocalAddr returns the address the server sees, or "" when not connected.
func (c *Client) LocalAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.LocalAddr()
}

// Send sends one line of input: a chat message or a /command.
func (c *Client) Send(text string) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(protocol.EncodeFrame("", text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Messages returns the frames received from the server. The channel is
// closed when the connection ends.
func (c *Client) Messages() <-chan string {
	return c.messages
}

func (c *Client) receiveMessages(conn Connection) {
	defer c.wg.Done()
	defer close(c.messages)

	dec := protocol.NewDecoder(0)
	for {
		data, err := conn.Read()
		frames := dec.Feed(data)
		if err != nil {
			frames = append(frames, dec.Flush()...)
		}
		for _, frame := range frames {
			select {
			case c.messages <- frame:
			case <-c.done:
				return
			}
		}
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}
	}
}
