package hub

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 与 HTTP 层放开 CORS 保持一致，任意来源可订阅。
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 处理 GET /ws/:audience 的订阅升级。
// 未知受众先完成握手再以 4000 关闭，客户端能读到明确的关闭码。
func (h *Hub) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		audience := c.Param("audience")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		if !h.ValidAudience(audience) {
			msg := websocket.FormatCloseMessage(CloseInvalidAudience, "unknown audience")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
			_ = conn.Close()
			return
		}

		h.Subscribe(conn, audience)

		// 查看端只收不发；读循环只为感知断连，收到的帧直接丢弃。
		go func() {
			defer func() {
				h.Unsubscribe(conn, audience)
				_ = conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
