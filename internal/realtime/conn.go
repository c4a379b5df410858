package realtime

import (
	"sync"

	"github.com/google/uuid"

	"resumebuilder/api/internal/broadcast"
)

type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateLeft
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Conn is the local state of one authenticated connection. Its session
// fields are only touched by the connection's own actor goroutine; the
// outbound queue is safe for any goroutine.
type Conn struct {
	id       string
	identity string

	state    State
	resumeID string

	out       chan broadcast.Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(identity string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		id:       uuid.NewString(),
		identity: identity,
		out:      make(chan broadcast.Message, buffer),
		done:     make(chan struct{}),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) Identity() string { return c.identity }
func (c *Conn) State() State     { return c.state }
func (c *Conn) ResumeID() string { return c.resumeID }

// Outbound is drained by the transport writer.
func (c *Conn) Outbound() <-chan broadcast.Message { return c.out }

// Done is closed once the connection has been torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Deliver queues msg without blocking. Messages for a closed connection or
// a full queue are dropped.
func (c *Conn) Deliver(msg broadcast.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
