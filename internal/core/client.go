package core

import (
	"sync"
	"time"
)

// Identity is the authenticated user bound to a connection, immutable for
// the life of the session. Admin status gates filter bypass.
type Identity struct {
	ID       int64
	Username string
	IsAdmin  bool
}

// Client is one live connection as seen by the hub. Exactly one client per
// user id is installed at a time; a newer connection evicts the older one.
type Client struct {
	ID          string // connection id
	User        Identity
	ConnectedAt time.Time

	Events chan *Event

	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string, user Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{
		ID:          id,
		User:        user,
		ConnectedAt: time.Now(),
		Events:      make(chan *Event, buffer),
		done:        make(chan struct{}),
	}
}

// Deliver queues an event without blocking. Events are dropped when the
// client is closed or its buffer is full (slow consumer).
func (c *Client) Deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close marks the client closed with a reason. Idempotent; the first reason
// wins. The transport watches Done to tear the connection down.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Done is closed when the client has been shut down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseReason returns the reason recorded by Close. Valid after Done fires.
func (c *Client) CloseReason() string {
	select {
	case <-c.done:
		return c.reason
	default:
		return ""
	}
}
