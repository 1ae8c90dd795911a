package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler upgrades an HTTP request and hands the WebSocket
// connection to the accept callback. Origin checks are deliberately
// open: browser relay clients are served from arbitrary origins and
// the protocol authenticates with its own init exchange.
func WSHandler(accept func(Conn), logger zerolog.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn().Err(err).Str("remote", c.Request.RemoteAddr).Msg("websocket upgrade failed")
			return
		}
		go accept(NewWSConn(ws))
	}
}
