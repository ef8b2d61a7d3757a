package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flowreplay/pkg/response"
)

// ReplayEventStream pushes live replay progress events to a websocket
// client: step lifecycle, nuances, suspensions, run completion.
func ReplayEventStream(c *gin.Context) {
	if bus == nil {
		response.InternalServerError(c, "event stream not available")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	events, cancel := bus.Subscribe(64)

	// Reader goroutine detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			cancel()
			conn.Close()
		}()
		for {
			select {
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			}
		}
	}()
}
