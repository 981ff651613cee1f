package live

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	// done is closed exactly once; send is never closed so Offer cannot
	// race with shutdown.
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) OwnerID() string { return c.UserID }

func (c *Client) Offer(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close unregisters the client and stops both pumps.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.unregister(c)
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write live message")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump keeps the read deadline fresh and answers pings. Inbound frames
// of any size are drained; only the first LogMessageBytes are logged.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("unexpected live close")
			}
			return
		}

		head, err := io.ReadAll(io.LimitReader(r, c.hub.config.LogMessageBytes))
		if err != nil {
			return
		}
		rest, err := io.Copy(io.Discard, r)
		if err != nil {
			return
		}
		// inbound messages carry no protocol
		log.Debug().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Bytes("message", head).
			Int64("dropped_bytes", rest).
			Msg("received client message")
		c.conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
