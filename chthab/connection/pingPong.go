package connection

import (
	"time"

	"chthabserver/chthab/broadcast"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingPeriod is how often the server pings an idle socket.
	PingPeriod = 10 * time.Second
	// PongWait is how long a socket may stay silent before the read side gives up.
	PongWait  = 60 * time.Second
	writeWait = 10 * time.Second

	maxFrameSize = 4096
)

// PrepareRead limits frame size and arms the read deadline, which every pong refreshes.
func PrepareRead(c *broadcast.Client) {
	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})
}

// MaintainWebSocketConnection drains the client's outbox onto the socket and pings
// it every PingPeriod. It returns once the outbox is closed or a write fails.
func MaintainWebSocketConnection(c *broadcast.Client, logger *zap.Logger) {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Outbox():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Info("Write failed, closing connection", zap.String("connectionID", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Info("Error sending ping", zap.String("connectionID", c.ID), zap.Error(err))
				return
			}
		}
	}
}
