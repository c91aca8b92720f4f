package websocket

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"slidecast-backend/internal/realtime"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 4096
)

var (
	errSendQueueFull = errors.New("send queue full")
	errClientClosed  = errors.New("client closed")
)

// Client is one live websocket connection. It satisfies realtime.Sink: the
// room broadcaster hands it envelopes, which queue on the send channel and
// leave through the write pump. The connection id is minted at upgrade time
// and never reused.
type Client struct {
	id       string
	identity realtime.Identity
	hub      *Hub
	conn     *websocket.Conn
	send     chan realtime.Envelope
	done     chan struct{}
	closeOne sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, id string, identity realtime.Identity, queueSize int) *Client {
	return &Client{
		id:       id,
		identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan realtime.Envelope, queueSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) ConnectionID() string { return c.id }

// Send queues an envelope without ever blocking; rooms call it while
// holding their lock. A full queue means the reader on the other end has
// stalled, and losing a frame to them beats stalling the room.
func (c *Client) Send(ev realtime.Envelope) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendQueueFull
	}
}

// Close shuts the connection down. Safe to call from any goroutine and more
// than once: resumes close the connection they replace while its own pumps
// are still running.
func (c *Client) Close() error {
	c.closeOne.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// readPump consumes inbound frames until the connection dies, dispatching
// each in arrival order. Pongs count as activity so an idle-but-alive tab
// is not swept.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.presence.Touch(c.id)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error on %s: %v", c.id, err)
			}
			return
		}
		c.hub.dispatch(c, raw)
	}
}

// writePump owns all writes to the underlying connection: queued envelopes
// and keepalive pings. Everything queued before a control broadcast leaves
// before it, preserving per-room order for this receiver.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
