package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Client — одно физическое подключение. Все команды идут через read pump,
// вся отправка через write pump; общего изменяемого состояния с другими
// подключениями нет.
type Client struct {
	id     string
	userID string // пусто до успешной аутентификации
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]struct{} // мутируется только под мьютексом реестра
	hub    *Hub
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:    uuid.New().String(),
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		rooms: make(map[string]struct{}),
		hub:   hub,
	}
}

func (c *Client) authenticated() bool {
	return c.userID != ""
}

// enqueue — доставка без гарантий: при переполненном буфере событие
// отбрасывается, клиент догонит состояние при следующем чтении
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) sendEvent(event string, data any) {
	payload, err := json.Marshal(ServerEvent{Event: event, Data: data})
	if err != nil {
		c.hub.log.Error("Failed to marshal event", "error", err, "event", event)
		return
	}
	c.enqueue(payload)
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventError, map[string]string{"message": message})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Connection closed unexpectedly", "error", err, "connection_id", c.id)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}

		c.hub.handleFrame(c, &frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
