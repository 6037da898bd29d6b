package handler

import (
	"net/http"

	"Mano/pkg/util/myjwt"
	"Mano/pkg/ws"
	"Mano/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler 推送通道：消息落库、附件提取完成等事件广播给同一用户的所有标签页
type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve GET /ws?token=<JWT>
// 公开路由自带认证：token 无效直接拒绝升级。
func (h *WSHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}
	claims, err := myjwt.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error("WebSocket 升级失败", zap.Error(err))
		return
	}

	client := ws.NewClient(claims.Uuid, conn)
	h.hub.Register(client)

	go client.WritePump()

	// 读循环只用于感知断开，客户端不上行业务数据
	go func() {
		defer h.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
