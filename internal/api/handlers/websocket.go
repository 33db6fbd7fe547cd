package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	hub      *services.WebSocketHub
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *services.WebSocketHub, allowedOrigins []string) *WebSocketHandler {
	allowAll := lo.Contains(allowedOrigins, "*")
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowAll || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket upgrades the connection and subscribes it to the topics in
// the comma separated "topics" query, "selections" by default.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	topics := lo.Compact(strings.Split(c.DefaultQuery("topics", services.TopicSelections), ","))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	welcome := map[string]interface{}{
		"type": "welcome",
		"data": map[string]interface{}{
			"topics":    topics,
			"timestamp": time.Now().UTC(),
		},
	}
	if err := conn.WriteJSON(welcome); err != nil {
		logrus.WithError(err).Warn("Failed to send welcome message")
		conn.Close()
		return
	}

	logrus.WithFields(logrus.Fields{
		"topics":  topics,
		"subject": c.GetString("subject"),
	}).Debug("WebSocket client connected")

	client := services.NewClient(h.hub, conn, topics...)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
