package realtime

import (
	"sync"

	"github.com/campushq/helpdesk-api/internal/models"
)

// Client represents a single websocket connection with caller identity.
// One user may hold several concurrent connections (multiple tabs/devices).
type Client struct {
	Identity models.Identity
	Send     chan []byte

	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// NewClient builds a client with a buffered send channel. Buffer overruns
// drop the frame instead of blocking the publisher; REST reads remain the
// source of truth for anything a slow consumer misses.
func NewClient(identity models.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		Identity: identity,
		Send:     make(chan []byte, buffer),
	}
}

// Close tears down the send channel and detaches the client from the hub.
// Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	// Detach outside the mutex so c.mu is never held while taking the
	// hub lock.
	c.mu.Unlock()
	if c.hub != nil {
		c.hub.unregister(c)
	}
}

// deliver holds the mutex across the send so Close cannot shut the channel
// between the closed check and the write.
func (c *Client) deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
