package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"messenger/internal/realtime"
	"messenger/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

type WebSocketHandler struct {
	hub *realtime.Hub
	log logger.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, log: log}
}

// Handle апгрейдит соединение и передаёт его хабу. Аутентификация
// происходит уже внутри соединения первым кадром.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	h.hub.ServeConn(conn)
}
