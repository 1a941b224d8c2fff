package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storyweaver/internal/store"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = wsPongWait * 9 / 10
	wsEventBuffer  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域限制由 CORS 中间件负责
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents 将集合变更实时推送给客户端，story_id 参数可只订阅单个故事
func handleEvents(lib *store.Library, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 先订阅再升级，握手完成后的变更都不会丢失
		events, cancel := lib.Subscribe(wsEventBuffer)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			cancel()
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		filter := c.Query("story_id")

		done := make(chan struct{})
		go readPump(conn, done)
		writePump(conn, events, filter, done, log)

		cancel()
		_ = conn.Close()
	}
}

// readPump 只处理 pong 和关闭帧，连接断开时关闭 done
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, events <-chan store.Event, filter string, done <-chan struct{}, log logrus.FieldLogger) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filter != "" && ev.StoryID != filter {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
