package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/auraseo/aura_server/internal/pkg/response"
	"github.com/auraseo/aura_server/internal/pkg/ws"
	"github.com/auraseo/aura_server/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要验证 Origin
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketHandler struct {
	hub                *ws.Hub
	competitiveService *service.CompetitiveService
}

func NewWebSocketHandler(hub *ws.Hub, competitiveService *service.CompetitiveService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:                hub,
		competitiveService: competitiveService,
	}
}

// Handle 订阅批次进度推送
// GET /api/v1/competitive/:id/ws
func (h *WebSocketHandler) Handle(c *gin.Context) {
	batchID := c.Param("id")

	// 订阅前确认批次存在，避免挂一个永远收不到消息的连接
	if _, err := h.competitiveService.GetStatus(batchID); err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			response.NotFoundError(c, err.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := &ws.Client{
		BatchID: batchID,
		Conn:    conn,
	}

	h.hub.Register(client)

	// 保持连接，读取消息（主要用于检测断开）
	go func() {
		defer h.hub.Unregister(client)
		defer conn.Close()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}
