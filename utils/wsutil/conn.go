package wsutil

import (
	"context"
	stderr "errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// CloseDeadline controls the deadline to wait for sending the close frame.
var CloseDeadline = time.Second

// ErrWebsocketClosed is returned if the websocket is already closed.
var ErrWebsocketClosed = errors.New("websocket is closed")

// Event is a single frame read off the websocket.
type Event struct {
	Data []byte

	// Error is non-nil if Data is nil.
	Error error
}

// Connection is an interface that abstracts around a generic websocket driver.
type Connection interface {
	// Dial dials the address (string). Context needs to be passed in for
	// timeout. This method should also be re-usable after Close is called.
	Dial(context.Context, string) error

	// Listen returns the channel the read loop delivers frames on. The
	// channel is closed when the connection dies; a read error is delivered
	// first.
	Listen() <-chan Event

	// Send allows the caller to send bytes. Thread safety is a requirement.
	Send(context.Context, []byte) error

	// Close sends a close frame and tears the connection down.
	Close() error
}

// Conn is the default websocket connection, backed by gorilla. The QQ gateway
// speaks plain JSON text frames, so there is no payload compression to deal
// with.
type Conn struct {
	dialer *websocket.Dialer

	mut    sync.RWMutex
	conn   *websocket.Conn
	events chan Event

	wrmut sync.Mutex
}

var _ Connection = (*Conn)(nil)

func NewConn() *Conn {
	return &Conn{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultTimeout,
		},
	}
}

func (c *Conn) Dial(ctx context.Context, addr string) error {
	conn, _, err := c.dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return errors.Wrap(err, "failed to dial websocket")
	}

	events := make(chan Event, 1)

	c.mut.Lock()
	c.conn = conn
	c.events = events
	c.mut.Unlock()

	go readLoop(conn, events)
	return nil
}

func (c *Conn) Listen() <-chan Event {
	c.mut.RLock()
	defer c.mut.RUnlock()

	return c.events
}

func readLoop(conn *websocket.Conn, events chan<- Event) {
	// Clean up the events channel in the end.
	defer close(events)

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if stderr.Is(err, io.EOF) {
				return
			}
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}

			// Unusual error. The reader may have already left after closing
			// the connection itself, so don't block on delivering it.
			select {
			case events <- Event{nil, errors.Wrap(err, "websocket error")}:
			default:
			}
			return
		}

		events <- Event{b, nil}
	}
}

func (c *Conn) Send(ctx context.Context, b []byte) error {
	c.mut.RLock()
	conn := c.conn
	c.mut.RUnlock()

	if conn == nil {
		return ErrWebsocketClosed
	}

	c.wrmut.Lock()
	defer c.wrmut.Unlock()

	if d, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(d)
		defer conn.SetWriteDeadline(time.Time{})
	}

	return conn.WriteMessage(websocket.TextMessage, b)
}

// Close sends a close frame then tears the connection down. It is safe to
// call on an already-closed connection.
func (c *Conn) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.conn == nil {
		return ErrWebsocketClosed
	}

	c.wrmut.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(CloseDeadline))
	err := c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.conn.SetWriteDeadline(time.Time{})
	c.wrmut.Unlock()

	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}

	// Flush the events channel so a read loop blocked on delivery can see
	// the dead socket and exit.
	for range c.events {
	}

	c.conn = nil
	c.events = nil
	return err
}
