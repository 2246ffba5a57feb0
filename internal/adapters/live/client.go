package live

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

// Serve upgrades the request, sends initial and subscribes the connection
// to codename. It returns once the connection is handed to its pumps.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, codename string, initial model.Board) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return err
	}
	payload, err := h.encode(codename, initial)
	if err != nil {
		_ = conn.Close()
		return err
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), room: codename}
	c.send <- payload

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return ErrClosed
	case <-r.Context().Done():
		_ = conn.Close()
		return r.Context().Err()
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump discards client messages; it exists to process pongs and
// notice disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(context.Background(), "subscriber read failed", logger.String("codename", c.room), logger.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
