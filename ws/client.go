package ws

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"ward/etc"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 1 << 20 // audio chunks arrive base64-encoded
	sendBufferSize = 64
)

// Client is one websocket connection. It satisfies hub.Conn: Send enqueues an
// event for the write pump and drops it when the buffer is full, which is the
// at-most-once delivery the hub promises.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan OutboundFrame
	done   chan struct{}
	logger *log.Logger
}

func newClient(conn *websocket.Conn, userID string, logger *log.Logger) *Client {
	return &Client{
		id:     etc.NewFreshID(),
		userID: userID,
		conn:   conn,
		send:   make(chan OutboundFrame, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *Client) ID() string { return c.id }

// UserID is the authenticated clinician this connection belongs to.
func (c *Client) UserID() string { return c.userID }

func (c *Client) Send(event string, payload any) error {
	frame := OutboundFrame{Event: event, Data: payload}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// writePump owns all writes to the underlying connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Debug("write failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
