package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/persuratan-gin/internal/auth"
	"github.com/sirupsen/logrus"
)

// NewUpgrader 创建连接升级器
// allowedOrigins 为空或包含 "*" 时不校验 Origin
func NewUpgrader(allowedOrigins []string) gorillaWS.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return gorillaWS.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// WebSocketHandler WebSocket 处理器
// 按员工 ID 关联连接,validator 为 nil 时使用 actor 查询参数
func WebSocketHandler(hub *Hub, validator *auth.TokenValidator, upgrader gorillaWS.Upgrader, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := auth.ResolveActor(c, validator)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade 已经写入错误响应
			return
		}

		client := NewClient(uuid.New().String(), actor, hub, conn, logger)

		select {
		case hub.Register <- client:
		case <-hub.Done():
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}
