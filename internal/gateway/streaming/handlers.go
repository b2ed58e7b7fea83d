package streaming

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kandev/agui-gateway/internal/common/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin
		return true
	},
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub    *Hub
	logger *logger.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws_handler")),
	}
}

// Stream handles a WebSocket connection mirroring run events. Clients manage
// thread subscriptions through SubscriptionMessage frames; a threadId query
// parameter seeds an initial subscription.
// WS /api/v1/streams/ws
func (h *WSHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := uuid.New().String()

	h.logger.Info("WebSocket connection established",
		zap.String("client_id", clientID))

	client := NewClient(clientID, conn, h.hub, h.logger)
	h.hub.Register(client)

	if threadID := c.Query("threadId"); threadID != "" {
		client.Subscribe(threadID)
	}

	// The ReadPump handles subscription messages from the client
	go client.WritePump()
	go client.ReadPump()
}

// SetupWebSocketRoutes adds WebSocket routes to the router
func SetupWebSocketRoutes(router *gin.RouterGroup, handler *WSHandler) {
	router.GET("/streams/ws", handler.Stream)
}
