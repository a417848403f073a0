package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only feed of public catalog events
	},
}

// WSHandler upgrades the request and keeps the client subscribed until it
// disconnects.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		l := &wsListener{ws: ws}
		if err := hub.join(l); err != nil {
			hub.log.Debug("welcome failed", "remote", l.remote(), "error", err)
			_ = ws.Close()
			return
		}
		defer hub.leave(l)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}
}
